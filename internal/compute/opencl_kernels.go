//go:build opencl

package compute

// Device code for OpenCLBackend. Every kernel takes the interior side n and
// the lattice dimension; 2D launches use a depth of one and k = 0.
const fluidKernelSource = `
#define IX(i, j, k) ((i) + s * (j) + s * s * (k))

__kernel void add_source(const int total, const float dt,
                         __global float* x, __global const float* src)
{
    int g = get_global_id(0);
    if (g < total) {
        x[g] += dt * src[g];
    }
}

__kernel void relax(const int n, const int dim, const float a, const float c,
                    __global float* x, __global const float* x0)
{
    int s = n + 2;
    int i = get_global_id(0) + 1;
    int j = get_global_id(1) + 1;
    int k = dim == 3 ? get_global_id(2) + 1 : 0;
    int idx = IX(i, j, k);

    float sum = x[idx - 1] + x[idx + 1] + x[idx - s] + x[idx + s];
    if (dim == 3) {
        sum += x[idx - s * s] + x[idx + s * s];
    }
    x[idx] = (x0[idx] + a * sum) / c;
}

__kernel void set_bnd(const int n, const int dim, const int b, __global float* x)
{
    int s = n + 2;
    float sx = b == 1 ? -1.0f : 1.0f;
    float sy = b == 2 ? -1.0f : 1.0f;
    float sz = b == 3 ? -1.0f : 1.0f;

    if (dim == 2) {
        for (int t = 1; t <= n; t++) {
            x[IX(0, t, 0)] = sx * x[IX(1, t, 0)];
            x[IX(n + 1, t, 0)] = sx * x[IX(n, t, 0)];
            x[IX(t, 0, 0)] = sy * x[IX(t, 1, 0)];
            x[IX(t, n + 1, 0)] = sy * x[IX(t, n, 0)];
        }
        x[IX(0, 0, 0)] = 0.5f * (x[IX(1, 0, 0)] + x[IX(0, 1, 0)]);
        x[IX(0, n + 1, 0)] = 0.5f * (x[IX(1, n + 1, 0)] + x[IX(0, n, 0)]);
        x[IX(n + 1, 0, 0)] = 0.5f * (x[IX(n, 0, 0)] + x[IX(n + 1, 1, 0)]);
        x[IX(n + 1, n + 1, 0)] = 0.5f * (x[IX(n, n + 1, 0)] + x[IX(n + 1, n, 0)]);
        return;
    }

    for (int c = 1; c <= n; c++) {
        for (int a = 1; a <= n; a++) {
            x[IX(0, a, c)] = sx * x[IX(1, a, c)];
            x[IX(n + 1, a, c)] = sx * x[IX(n, a, c)];
            x[IX(a, 0, c)] = sy * x[IX(a, 1, c)];
            x[IX(a, n + 1, c)] = sy * x[IX(a, n, c)];
            x[IX(a, c, 0)] = sz * x[IX(a, c, 1)];
            x[IX(a, c, n + 1)] = sz * x[IX(a, c, n)];
        }
    }

    for (int t = 1; t <= n; t++) {
        x[IX(t, 0, 0)] = sy * x[IX(t, 1, 0)];
        x[IX(t, n + 1, 0)] = sy * x[IX(t, n, 0)];
        x[IX(t, 0, n + 1)] = sy * x[IX(t, 1, n + 1)];
        x[IX(t, n + 1, n + 1)] = sy * x[IX(t, n, n + 1)];

        x[IX(0, t, 0)] = sx * x[IX(1, t, 0)];
        x[IX(n + 1, t, 0)] = sx * x[IX(n, t, 0)];
        x[IX(0, t, n + 1)] = sx * x[IX(1, t, n + 1)];
        x[IX(n + 1, t, n + 1)] = sx * x[IX(n, t, n + 1)];

        x[IX(0, 0, t)] = sx * x[IX(1, 0, t)];
        x[IX(n + 1, 0, t)] = sx * x[IX(n, 0, t)];
        x[IX(0, n + 1, t)] = sx * x[IX(1, n + 1, t)];
        x[IX(n + 1, n + 1, t)] = sx * x[IX(n, n + 1, t)];
    }

    for (int ci = 0; ci <= n + 1; ci += n + 1) {
        int ii = ci == 0 ? 1 : n;
        for (int cj = 0; cj <= n + 1; cj += n + 1) {
            int jj = cj == 0 ? 1 : n;
            for (int ck = 0; ck <= n + 1; ck += n + 1) {
                int kk = ck == 0 ? 1 : n;
                x[IX(ci, cj, ck)] = (x[IX(ii, cj, ck)] + x[IX(ci, jj, ck)] + x[IX(ci, cj, kk)]) / 3.0f;
            }
        }
    }
}

__kernel void divergence(const int n, const int dim,
                         __global float* div, __global float* p,
                         __global const float* u, __global const float* v, __global const float* w)
{
    int s = n + 2;
    int i = get_global_id(0) + 1;
    int j = get_global_id(1) + 1;
    int k = dim == 3 ? get_global_id(2) + 1 : 0;
    int idx = IX(i, j, k);
    float h = 1.0f / n;

    float d = u[idx + 1] - u[idx - 1] + v[idx + s] - v[idx - s];
    if (dim == 3) {
        d += w[idx + s * s] - w[idx - s * s];
    }
    div[idx] = -0.5f * h * d;
    p[idx] = 0.0f;
}

__kernel void gradient(const int n, const int dim,
                       __global float* u, __global float* v, __global float* w,
                       __global const float* p)
{
    int s = n + 2;
    int i = get_global_id(0) + 1;
    int j = get_global_id(1) + 1;
    int k = dim == 3 ? get_global_id(2) + 1 : 0;
    int idx = IX(i, j, k);
    float scale = 0.5f * n;

    u[idx] -= scale * (p[idx + 1] - p[idx - 1]);
    v[idx] -= scale * (p[idx + s] - p[idx - s]);
    if (dim == 3) {
        w[idx] -= scale * (p[idx + s * s] - p[idx - s * s]);
    }
}

__kernel void advect(const int n, const int dim, const float dt,
                     __global float* d, __global const float* d0,
                     __global const float* u, __global const float* v, __global const float* w)
{
    int s = n + 2;
    int i = get_global_id(0) + 1;
    int j = get_global_id(1) + 1;
    int k = dim == 3 ? get_global_id(2) + 1 : 0;
    int idx = IX(i, j, k);
    float dt0 = dt * n;

    float x = clamp(i - dt0 * u[idx], 0.5f, n + 0.5f);
    float y = clamp(j - dt0 * v[idx], 0.5f, n + 0.5f);
    int i0 = (int)x;
    int j0 = (int)y;
    float s1 = x - i0, s0 = 1.0f - s1;
    float t1 = y - j0, t0 = 1.0f - t1;

    if (dim == 2) {
        d[idx] = s0 * (t0 * d0[IX(i0, j0, 0)] + t1 * d0[IX(i0, j0 + 1, 0)]) +
                 s1 * (t0 * d0[IX(i0 + 1, j0, 0)] + t1 * d0[IX(i0 + 1, j0 + 1, 0)]);
        return;
    }

    float z = clamp(k - dt0 * w[idx], 0.5f, n + 0.5f);
    int k0 = (int)z;
    float r1 = z - k0, r0 = 1.0f - r1;

    d[idx] = s0 * (t0 * (r0 * d0[IX(i0, j0, k0)] + r1 * d0[IX(i0, j0, k0 + 1)]) +
                   t1 * (r0 * d0[IX(i0, j0 + 1, k0)] + r1 * d0[IX(i0, j0 + 1, k0 + 1)])) +
             s1 * (t0 * (r0 * d0[IX(i0 + 1, j0, k0)] + r1 * d0[IX(i0 + 1, j0, k0 + 1)]) +
                   t1 * (r0 * d0[IX(i0 + 1, j0 + 1, k0)] + r1 * d0[IX(i0 + 1, j0 + 1, k0 + 1)]));
}
`
