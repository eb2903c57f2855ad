package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
	profileFile  = "profile.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Dim         int                `json:"dim"`
	N           int                `json:"n"`
	FinalN      int                `json:"final_n"`
	SolverSteps int                `json:"solver_steps"`
	Dt          float64            `json:"dt"`
	Viscosity   float64            `json:"viscosity"`
	Diffusion   float64            `json:"diffusion"`
	Backend     string             `json:"backend"`
	Pipeline    string             `json:"pipeline"`
	Profile     string             `json:"profile"`
	Frames      int                `json:"frames"`
	Scenario    string             `json:"scenario,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// FrameRecord is one row of frames.csv.
type FrameRecord struct {
	Frame        int     `csv:"frame"`
	N            int     `csv:"n"`
	SolverSteps  int     `csv:"solver_steps"`
	FrameSeconds float64 `csv:"frame_seconds"`
	AvgSeconds   float64 `csv:"avg_seconds"`
	FPS          float64 `csv:"fps"`
	Mass         float64 `csv:"mass"`
	Resized      bool    `csv:"resized"`
}

// StageRecord is one row of profile.csv.
type StageRecord struct {
	Stage        string  `csv:"stage"`
	Calls        int     `csv:"calls"`
	TotalSeconds float64 `csv:"total_seconds"`
	MeanSeconds  float64 `csv:"mean_seconds"`
}

// Save writes a run directory with metadata.json, frames.csv and, when
// stages is non-empty, profile.csv. It returns the run ID.
func (s *Store) Save(meta RunMetadata, frames []FrameRecord, stages []StageRecord) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	name := meta.Name
	if name == "" {
		name = "run"
	}
	// The suffix keeps runs saved within the same second apart.
	meta.ID = fmt.Sprintf("%s_%s_%s", name, meta.Timestamp.Format("20060102-150405"), uuid.NewString()[:8])
	meta.Frames = len(frames)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := writeCSV(filepath.Join(runDir, framesFile), frames); err != nil {
		return "", fmt.Errorf("writing frames: %w", err)
	}
	if len(stages) > 0 {
		if err := writeCSV(filepath.Join(runDir, profileFile), stages); err != nil {
			return "", fmt.Errorf("writing profile: %w", err)
		}
	}
	return meta.ID, nil
}

func writeCSV[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&records, f)
}

// List returns every run with readable metadata, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]FrameRecord, error) {
	return readCSV[FrameRecord](filepath.Join(s.baseDir, runID, framesFile))
}

// LoadProfile returns nil without error when the run was not profiled.
func (s *Store) LoadProfile(runID string) ([]StageRecord, error) {
	records, err := readCSV[StageRecord](filepath.Join(s.baseDir, runID, profileFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return records, err
}

func readCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []T
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, err
	}
	return records, nil
}
