package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/arkvault/internal/apperr"
)

func tempFile(t *testing.T, opts ...Option) *File {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "entry"), opts...)
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at = at.Add(time.Second)
		return at
	}
}

func TestLoadMissing(t *testing.T) {
	f := tempFile(t)
	_, err := f.Load()
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOverwriteAndLoad(t *testing.T) {
	f := tempFile(t, WithWriter("host-1"), WithClock(fixedClock()))
	gen, err := f.Overwrite([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, InitialVersion, gen.Version)

	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "hello", string(got.Bytes()))
	require.Equal(t, InitialVersion, got.Version)
	require.Equal(t, "host-1", got.Writer)
	require.True(t, got.ModifiedAt.Equal(gen.ModifiedAt))
}

func TestVersionMonotonic(t *testing.T) {
	f := tempFile(t)
	const n = 7
	for i := 0; i < n; i++ {
		gen, err := f.Modify(func(cur []byte) ([]byte, error) {
			return append(cur, byte('a'+i)), nil
		})
		require.NoError(t, err)
		require.Equal(t, InitialVersion+uint64(i), gen.Version)
	}
	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, InitialVersion+n-1, got.Version)
	require.Equal(t, "abcdefg", string(got.Bytes()))

	gens, err := f.Generations()
	require.NoError(t, err)
	require.Len(t, gens, n)
	for i, g := range gens {
		require.Equal(t, InitialVersion+uint64(i), g.Version)
	}
}

func TestModifySeesCurrentContent(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("a"))
	require.NoError(t, err)
	_, err = f.Modify(func(cur []byte) ([]byte, error) {
		require.Equal(t, "a", string(cur))
		return append(cur, 'b'), nil
	})
	require.NoError(t, err)
	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "ab", string(got.Bytes()))
}

func TestTransformErrorLeavesGenerationIntact(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("stable"))
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	_, err = f.Modify(func([]byte) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "stable", string(got.Bytes()))
	require.Equal(t, InitialVersion, got.Version)
	requireNoTemps(t, f)
}

func TestCrashBeforeCommitIgnored(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("v1"))
	require.NoError(t, err)

	// A crashed writer leaves a half-written temp file behind.
	stale := filepath.Join(filepath.Dir(f.Path()), ".entry.tmp-123")
	require.NoError(t, os.WriteFile(stale, []byte("arkgen/1 2 x 1\nhalf"), 0o644))

	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "v1", string(got.Bytes()))

	gen, err := f.Overwrite([]byte("v2"))
	require.NoError(t, err)
	require.Equal(t, InitialVersion+1, gen.Version)
}

func TestConflictWhenLocked(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("base"))
	require.NoError(t, err)

	unlock, err := acquire(f.lockPath())
	require.NoError(t, err)

	called := false
	_, err = f.Modify(func(cur []byte) ([]byte, error) {
		called = true
		return cur, nil
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.False(t, called, "transform must not run without the lock")

	require.NoError(t, unlock())
	_, err = f.Overwrite([]byte("after"))
	require.NoError(t, err)
}

func TestConflictWhenPathMovesOn(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("base"))
	require.NoError(t, err)

	_, err = f.Modify(func(cur []byte) ([]byte, error) {
		// A writer that ignores the lock commits version 2 underneath us.
		require.NoError(t, os.WriteFile(f.Path(), []byte("arkgen/1 2 rogue 5\nrogue"), 0o644))
		return []byte("mine"), nil
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, "rogue", string(got.Bytes()))
	requireNoTemps(t, f)
}

func TestConcurrentWritersVersionsHaveNoGaps(t *testing.T) {
	f := tempFile(t)
	const writers = 16

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		unexpected []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Modify(func(cur []byte) ([]byte, error) {
				return append(cur, 'x'), nil
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, apperr.ErrConflict):
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	require.Positive(t, succeeded)
	got, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, uint64(succeeded), got.Version)
	require.Len(t, got.Bytes(), succeeded)
}

func TestCorruptMarker(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("not a generation\n"), 0o644))
	_, err := f.Load()
	require.ErrorIs(t, err, apperr.ErrCorrupt)

	require.NoError(t, os.WriteFile(f.Path(), []byte("no newline at all"), 0o644))
	_, err = f.Load()
	require.ErrorIs(t, err, apperr.ErrCorrupt)

	_, err = f.Overwrite([]byte("x"))
	require.ErrorIs(t, err, apperr.ErrCorrupt)
}

func TestDirectoryIsCorrupt(t *testing.T) {
	f := tempFile(t)
	require.NoError(t, os.Mkdir(f.Path(), 0o755))
	_, err := f.Load()
	require.ErrorIs(t, err, apperr.ErrCorrupt)
}

func TestGenerationsTokenFromFilename(t *testing.T) {
	clock := fixedClock()
	f := tempFile(t, WithWriter("box_7"), WithClock(clock))
	g1, err := f.Overwrite([]byte("v1"))
	require.NoError(t, err)
	g2, err := f.Overwrite([]byte("v2"))
	require.NoError(t, err)

	gens, err := f.Generations()
	require.NoError(t, err)
	require.Len(t, gens, 2)
	require.Equal(t, "v1", string(gens[0].Bytes()))
	require.Equal(t, "v2", string(gens[1].Bytes()))
	// '_' is reserved as the filename separator.
	require.Equal(t, "box-7", gens[0].Writer)
	require.True(t, gens[0].ModifiedAt.Equal(g1.ModifiedAt))
	require.Equal(t, g2.Token(), gens[1].Token())
}

func TestGenerationsWithoutHistory(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("only"))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(f.historyDir()))

	gens, err := f.Generations()
	require.NoError(t, err)
	require.Len(t, gens, 1)
	require.Equal(t, "only", string(gens[0].Bytes()))
}

func TestGenerationsIncludeUnretainedCurrent(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("v1"))
	require.NoError(t, err)
	g2, err := f.Overwrite([]byte("v2"))
	require.NoError(t, err)

	// Simulate a crash between the rename and copying into history.
	matches, err := filepath.Glob(filepath.Join(f.historyDir(), fmt.Sprintf("%020d_*", g2.Version)))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NoError(t, os.Remove(matches[0]))

	gens, err := f.Generations()
	require.NoError(t, err)
	require.Len(t, gens, 2)
	require.Equal(t, InitialVersion, gens[0].Version)
	require.Equal(t, g2.Version, gens[1].Version)
	require.Equal(t, "v2", string(gens[1].Bytes()))
}

func TestRetainPrunesOldest(t *testing.T) {
	f := tempFile(t, WithRetain(2))
	for i := 1; i <= 5; i++ {
		_, err := f.Overwrite([]byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}
	gens, err := f.Generations()
	require.NoError(t, err)
	require.Len(t, gens, 2)
	require.Equal(t, uint64(4), gens[0].Version)
	require.Equal(t, uint64(5), gens[1].Version)
	require.Equal(t, "v5", string(gens[1].Bytes()))
}

func TestCorruptHistoryName(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("v1"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.historyDir(), "garbage"), []byte("x"), 0o644))
	_, err = f.Generations()
	require.ErrorIs(t, err, apperr.ErrCorrupt)
}

func TestRemoveResetsVersion(t *testing.T) {
	f := tempFile(t)
	_, err := f.Overwrite([]byte("v1"))
	require.NoError(t, err)
	_, err = f.Overwrite([]byte("v2"))
	require.NoError(t, err)

	require.NoError(t, f.Remove())
	_, err = f.Load()
	require.ErrorIs(t, err, apperr.ErrNotFound)

	gen, err := f.Overwrite([]byte("fresh"))
	require.NoError(t, err)
	require.Equal(t, InitialVersion, gen.Version)
}

func TestRemoveMissing(t *testing.T) {
	f := tempFile(t)
	require.ErrorIs(t, f.Remove(), apperr.ErrNotFound)
}

func TestNoTempFilesAfterWrites(t *testing.T) {
	f := tempFile(t)
	for i := 0; i < 3; i++ {
		_, err := f.Overwrite([]byte("x"))
		require.NoError(t, err)
	}
	requireNoTemps(t, f)
}

func requireNoTemps(t *testing.T, f *File) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(f.Path()), ".entry.tmp-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}
