// Package kernel implements the stable-fluids stages as plain functions over
// grid fields: source injection, Gauss-Seidel relaxation (diffusion and the
// pressure solve), the three projection phases and semi-Lagrangian
// advection.
//
// Cell-independent stages come in a Range form taking the interior layers
// lo..hi of the outermost axis (k in 3D, j in 2D) so a compute backend can
// split them across workers. Relax has no such form: every cell reads the
// cells written before it in the same sweep.
package kernel
