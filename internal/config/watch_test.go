package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestWatcherReloads(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "fluid.yaml")
	g.Expect(os.WriteFile(path, []byte("tuner:\n  target_fps: 20\n"), 0644)).To(Succeed())

	w, err := NewWatcher(path, nil, 20*time.Millisecond)
	g.Expect(err).NotTo(HaveOccurred())
	defer w.Stop()

	var (
		mu   sync.Mutex
		seen []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Expect(w.Start(ctx, func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.Tuner.TargetFPS)
	})).To(Succeed())

	// An invalid edit is skipped, the next valid one is delivered.
	g.Expect(os.WriteFile(path, []byte("tuner:\n  target_fps: -1\n"), 0644)).To(Succeed())
	time.Sleep(100 * time.Millisecond)
	g.Expect(os.WriteFile(path, []byte("tuner:\n  target_fps: 45\n"), 0644)).To(Succeed())

	g.Eventually(func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), seen...)
	}, 2*time.Second, 10*time.Millisecond).Should(ContainElement(45))

	mu.Lock()
	defer mu.Unlock()
	g.Expect(seen).NotTo(ContainElement(-1))
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	g := NewWithT(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "fluid.yaml")
	g.Expect(os.WriteFile(path, []byte("{}\n"), 0644)).To(Succeed())

	w, err := NewWatcher(path, nil, 10*time.Millisecond)
	g.Expect(err).NotTo(HaveOccurred())
	defer w.Stop()

	calls := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Expect(w.Start(ctx, func(*Config) { calls <- struct{}{} })).To(Succeed())

	g.Expect(os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644)).To(Succeed())
	g.Consistently(calls, 150*time.Millisecond).ShouldNot(Receive())
}
