package vector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"gopkg.in/yaml.v3"
)

const (
	// FormatVersion is bumped whenever the on-disk layout changes.
	FormatVersion = 1

	manifestFile = "manifest.yaml"
	payloadsFile = "payloads.db"
	flatBlobFile = "vectors.bin"
	faissFile    = "vectors.faiss"
)

var blobMagic = [8]byte{'S', 'H', 'I', 'O', 'V', 'E', 'C', '1'}

// Manifest describes a persisted index. It is written last, so a directory without one is incomplete.
type Manifest struct {
	FormatVersion int       `yaml:"format_version"`
	IndexType     IndexType `yaml:"index_type"`
	Metric        string    `yaml:"metric"`
	Dimensions    int       `yaml:"dimensions"`
	Model         string    `yaml:"model"`
	Count         int       `yaml:"count"`
	BuildID       string    `yaml:"build_id"`
	CreatedAt     time.Time `yaml:"created_at"`
}

func newManifest(t IndexType, dimensions int, model string, count int) Manifest {
	return Manifest{
		FormatVersion: FormatVersion,
		IndexType:     t,
		Metric:        MetricL2,
		Dimensions:    dimensions,
		Model:         model,
		Count:         count,
		BuildID:       uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
	}
}

// Expectation is what the caller's embedding provider needs from a persisted index.
// Zero fields are not checked.
type Expectation struct {
	Dimensions int
	Model      string
}

func blobPath(dir string, t IndexType) string {
	if t == IndexTypeFAISS {
		return filepath.Join(dir, faissFile)
	}
	return filepath.Join(dir, flatBlobFile)
}

// writeIndexDir writes a complete index into a fresh sibling directory and then swaps it into dir.
// On any failure dir is left as it was.
func writeIndexDir(dir string, m Manifest, payloads []models.Chunk, writeVectors func(tmp string) error) (err error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create index parent dir: %w", err)
	}
	tmp := dir + storage.TempDirMarker + uuid.NewString()
	if err := os.Mkdir(tmp, 0755); err != nil {
		return fmt.Errorf("create temp index dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeVectors(tmp); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := writePayloads(filepath.Join(tmp, payloadsFile), payloads); err != nil {
		return fmt.Errorf("write payloads: %w", err)
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return swapDir(tmp, dir)
}

// swapDir moves tmp into place at dir, moving any previous dir aside first.
func swapDir(tmp, dir string) error {
	var old string
	if _, err := os.Stat(dir); err == nil {
		old = dir + storage.OldDirMarker + uuid.NewString()
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("move previous index aside: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat index dir: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("move new index into place: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

func writePayloads(path string, payloads []models.Chunk) error {
	store, err := storage.CreateSQLitePayloadStore(path)
	if err != nil {
		return err
	}
	if err := store.WritePayloads(context.Background(), payloads); err != nil {
		_ = store.Close()
		return err
	}
	return store.Close()
}

func readPayloads(path string) ([]models.Chunk, error) {
	store, err := storage.OpenSQLitePayloadStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ReadPayloads(context.Background())
}

// writeVectorBlob writes magic, uint32 dimensions, uint32 count, then count*dimensions little-endian float32.
func writeVectorBlob(path string, dimensions, count int, vectors []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(blobMagic[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dimensions)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(count)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write count: %w", err)
	}
	if _, err := w.Write(float32SliceToBytes(vectors)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush vectors: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync vectors: %w", err)
	}
	return f.Close()
}

// readVectorBlob reads a blob written by writeVectorBlob and checks its header against the manifest.
func readVectorBlob(path string, dimensions, count int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != blobMagic {
		return nil, errors.New("not a shiori vector file")
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if int(dim) != dimensions {
		return nil, fmt.Errorf("vector file has %d dimensions, manifest says %d", dim, dimensions)
	}
	if int(n) != count {
		return nil, fmt.Errorf("vector file has %d vectors, manifest says %d", n, count)
	}
	want := int64(n) * int64(dim) * 4
	if int64(r.Len()) != want {
		return nil, fmt.Errorf("vector data is %d bytes, want %d", r.Len(), want)
	}
	buf := make([]byte, want)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return bytesToFloat32Slice(buf), nil
}

// ReadManifest reads the manifest of a persisted index.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Load restores an index saved by Index.Save. It checks the manifest against exp and against the
// files it describes; every failure is an *IndexLoadError and no partial index is returned.
func Load(dir string, exp Expectation) (Index, error) {
	idx, err := load(dir, exp)
	if err != nil {
		return nil, &IndexLoadError{Path: dir, Err: err}
	}
	return idx, nil
}

func load(dir string, exp Expectation) (Index, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d (want %d)", m.FormatVersion, FormatVersion)
	}
	if m.Metric != MetricL2 {
		return nil, fmt.Errorf("unsupported metric %q", m.Metric)
	}
	if m.Dimensions <= 0 || m.Count < 0 {
		return nil, fmt.Errorf("invalid manifest: dimensions=%d count=%d", m.Dimensions, m.Count)
	}
	if exp.Dimensions > 0 && exp.Dimensions != m.Dimensions {
		return nil, fmt.Errorf("index built for a different embedding size: %w",
			&DimensionMismatchError{Got: exp.Dimensions, Want: m.Dimensions})
	}
	if exp.Model != "" && exp.Model != m.Model {
		return nil, fmt.Errorf("index built with model %q, embedder uses %q", m.Model, exp.Model)
	}

	payloads, err := readPayloads(filepath.Join(dir, payloadsFile))
	if err != nil {
		return nil, fmt.Errorf("read payloads: %w", err)
	}
	if len(payloads) != m.Count {
		return nil, fmt.Errorf("payload table has %d rows, manifest says %d", len(payloads), m.Count)
	}

	switch m.IndexType {
	case IndexTypeFlat:
		vectors, err := readVectorBlob(blobPath(dir, IndexTypeFlat), m.Dimensions, m.Count)
		if err != nil {
			return nil, fmt.Errorf("read vectors: %w", err)
		}
		return newFlatIndex(m.Dimensions, m.Model, vectors, payloads), nil
	case IndexTypeFAISS:
		idx, err := loadFAISSIndex(blobPath(dir, IndexTypeFAISS), m.Dimensions, m.Model, payloads)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type %q", m.IndexType)
	}
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
