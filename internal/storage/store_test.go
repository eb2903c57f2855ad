package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleFrames() []FrameRecord {
	return []FrameRecord{
		{Frame: 0, N: 20, SolverSteps: 20, FrameSeconds: 0.061, AvgSeconds: 0.061, FPS: 16.4, Mass: 1.0},
		{Frame: 1, N: 19, SolverSteps: 19, FrameSeconds: 0.052, AvgSeconds: 0.0601, FPS: 16.6, Mass: 1.98, Resized: true},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Name:     "test",
		Dim:      3,
		N:        20,
		FinalN:   19,
		Backend:  "cpu",
		Pipeline: "staged",
		Metrics:  map[string]float64{"mass": 1.98},
	}
	stages := []StageRecord{{Stage: "advect dens", Calls: 2, TotalSeconds: 0.004, MeanSeconds: 0.002}}

	runID, err := st.Save(meta, sampleFrames(), stages)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	got, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Name != "test" || got.FinalN != 19 || got.Frames != 2 {
		t.Errorf("unexpected metadata %+v", got)
	}
	if got.Metrics["mass"] != 1.98 {
		t.Errorf("expected mass 1.98, got %f", got.Metrics["mass"])
	}

	frames, err := st.LoadFrames(runID)
	if err != nil {
		t.Fatalf("load frames failed: %v", err)
	}
	want := sampleFrames()
	if len(frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d: expected %+v, got %+v", i, want[i], frames[i])
		}
	}

	profile, err := st.LoadProfile(runID)
	if err != nil {
		t.Fatalf("load profile failed: %v", err)
	}
	if len(profile) != 1 || profile[0].Stage != "advect dens" || profile[0].Calls != 2 {
		t.Errorf("unexpected profile %+v", profile)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"later", "earlier"} {
		meta := RunMetadata{Name: name, Timestamp: base.Add(time.Duration(1-i) * time.Minute)}
		if _, err := st.Save(meta, sampleFrames(), nil); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Name != "earlier" {
		t.Errorf("expected oldest first, got %s", runs[0].Name)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(RunMetadata{Name: "test"}, sampleFrames(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "frames.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "profile.csv")); !os.IsNotExist(err) {
		t.Error("profile.csv should only exist for profiled runs")
	}

	header, err := os.ReadFile(filepath.Join(runDir, "frames.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(header, []byte("frame,n,solver_steps,frame_seconds,avg_seconds,fps,mass,resized")) {
		t.Errorf("unexpected frames header: %q", header)
	}

	profile, err := st.LoadProfile(runID)
	if err != nil || profile != nil {
		t.Errorf("expected no profile, got %v, %v", profile, err)
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Name: "export"}, sampleFrames(), nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := st.Export(runID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, data); err != nil {
		t.Fatal(err)
	}
	var decoded ExportData
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Run.ID != runID || len(decoded.Frames) != 2 || !decoded.Frames[1].Resized {
		t.Errorf("unexpected export %+v", decoded)
	}
}

func TestStoreDistinctIDs(t *testing.T) {
	st := New(t.TempDir())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a, err := st.Save(RunMetadata{Name: "same", Timestamp: at}, sampleFrames(), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.Save(RunMetadata{Name: "same", Timestamp: at}, sampleFrames(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two runs share id %s", a)
	}
	if !strings.HasPrefix(a, "same_20250301-120000_") {
		t.Errorf("unexpected id layout %s", a)
	}
	runs, err := st.List()
	if err != nil || len(runs) != 2 {
		t.Fatalf("list = %d runs, %v", len(runs), err)
	}
}
