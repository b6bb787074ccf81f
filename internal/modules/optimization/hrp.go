package optimization

import (
	"math"
)

// hrpWeights computes Hierarchical Risk Parity weights from a covariance
// matrix:
//  1. Correlation from covariance
//  2. Distance: d_ij = sqrt(2 * (1 - ρ_ij))
//  3. Agglomerative single-linkage clustering with a deterministic tie-break
//  4. Quasi-diagonalization (leaf order from the dendrogram)
//  5. Recursive bisection, splitting weight by inverse cluster variance
//
// Degenerate inputs (zero variances) fall back to equal weights. The result
// is normalized to sum one and aligned with the covariance row order.
func hrpWeights(cov [][]float64) []float64 {
	n := len(cov)
	if n == 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{1.0}
	}

	dist, ok := distanceMatrix(cov)
	if !ok {
		return equalWeights(n)
	}

	root := buildDendrogram(dist)
	order := quasiDiagonalOrder(root)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	recursiveBisection(weights, cov, order)

	sum := vectorSum(weights)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return equalWeights(n)
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// distanceMatrix converts covariance to the HRP distance metric. Returns
// false when any asset has a non-positive variance, since correlation is
// undefined there.
func distanceMatrix(cov [][]float64) ([][]float64, bool) {
	n := len(cov)
	sigma := make([]float64, n)
	for i := 0; i < n; i++ {
		if cov[i][i] <= 0 {
			return nil, false
		}
		sigma[i] = math.Sqrt(cov[i][i])
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			rho := clamp(cov[i][j]/(sigma[i]*sigma[j]), -1, 1)
			dist[i][j] = math.Sqrt(math.Max(2*(1-rho), 0))
		}
	}
	return dist, true
}

type hrpCluster struct {
	left    *hrpCluster
	right   *hrpCluster
	leaves  []int
	minLeaf int
}

// buildDendrogram runs agglomerative single-linkage clustering. Ties break
// deterministically on the lowest leaf indices so identical inputs always
// produce identical trees.
func buildDendrogram(dist [][]float64) *hrpCluster {
	n := len(dist)
	clusters := make([]*hrpCluster, 0, n)
	for i := 0; i < n; i++ {
		clusters = append(clusters, &hrpCluster{leaves: []int{i}, minLeaf: i})
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1])

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j])
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}

		merged := &hrpCluster{
			left:    left,
			right:   right,
			leaves:  append(append([]int{}, left.leaves...), right.leaves...),
			minLeaf: left.minLeaf,
		}

		next := make([]*hrpCluster, 0, len(clusters)-1)
		for k, c := range clusters {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, c)
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// clusterDistance is the single-linkage distance: the minimum pairwise
// distance between the clusters' leaves.
func clusterDistance(dist [][]float64, a, b *hrpCluster) float64 {
	best := math.Inf(1)
	for _, i := range a.leaves {
		for _, j := range b.leaves {
			if dist[i][j] < best {
				best = dist[i][j]
			}
		}
	}
	return best
}

// pairLess orders candidate merges by their sorted (minLeaf, minLeaf) pair.
func pairLess(a1, b1, a2, b2 *hrpCluster) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

// quasiDiagonalOrder flattens the dendrogram into the leaf order that places
// correlated assets next to each other.
func quasiDiagonalOrder(node *hrpCluster) []int {
	if node == nil {
		return nil
	}
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	return append(quasiDiagonalOrder(node.left), quasiDiagonalOrder(node.right)...)
}

// recursiveBisection splits the ordered universe in half and assigns each
// half a share of the weight inversely proportional to its cluster variance.
func recursiveBisection(weights []float64, cov [][]float64, order []int) {
	if len(order) <= 1 {
		return
	}

	split := len(order) / 2
	left, right := order[:split], order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = clamp(alpha, 0, 1)

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	recursiveBisection(weights, cov, left)
	recursiveBisection(weights, cov, right)
}

// clusterVariance is the variance of the cluster's inverse-variance
// portfolio.
func clusterVariance(cov [][]float64, idxs []int) float64 {
	if len(idxs) == 0 {
		return 0
	}
	if len(idxs) == 1 {
		return math.Max(cov[idxs[0]][idxs[0]], 0)
	}

	const eps = 1e-12
	inv := make([]float64, len(idxs))
	var sumInv float64
	for k, i := range idxs {
		v := math.Max(cov[i][i], eps)
		inv[k] = 1.0 / v
		sumInv += inv[k]
	}
	for k := range inv {
		inv[k] /= sumInv
	}

	var variance float64
	for a, i := range idxs {
		for b, j := range idxs {
			variance += inv[a] * cov[i][j] * inv[b]
		}
	}
	return math.Max(variance, 0)
}
