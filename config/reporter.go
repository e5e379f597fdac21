package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"epub2pdf/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates initialized empty reporter.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	a := &reportArchive{entries: make(map[string]reportEntry)}
	if f, err := os.Create(conf.Destination); err == nil {
		a.file = f
	} else if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err == nil {
		a.file = f
	} else {
		return nil, fmt.Errorf("unable to create report: %w", err)
	}
	return &Report{arc: a}, nil
}

// reportEntry either refers to a file read when report is closed or keeps
// data itself.
type reportEntry struct {
	path  string
	data  []byte
	stamp time.Time
}

type reportArchive struct {
	mu      sync.Mutex
	entries map[string]reportEntry
	file    *os.File
}

// add stores entry under name, taken names get numeric suffix.
func (a *reportArchive) add(name string, e reportEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	actual := name
	for i := 1; ; i++ {
		if _, taken := a.entries[actual]; !taken {
			break
		}
		ext := path.Ext(name)
		actual = fmt.Sprintf("%s-%d%s", name[:len(name)-len(ext)], i, ext)
	}
	a.entries[actual] = e
}

// Report accumulates debug artifacts and writes them into single archive on
// Close. Nil report ignores everything, so callers never check if reporting
// was requested. Conversions may run in parallel, all methods are safe for
// concurrent use.
type Report struct {
	arc    *reportArchive
	prefix string
}

// In returns report view which puts entries under dir. Views share the
// archive.
func (r *Report) In(dir string) *Report {
	if r == nil {
		return nil
	}
	return &Report{arc: r.arc, prefix: path.Join(r.prefix, dir)}
}

func (r *Report) entryName(name string) string {
	return path.Join(r.prefix, filepath.ToSlash(name))
}

// Name returns absolute name of the archive.
func (r *Report) Name() string {
	if r == nil {
		return ""
	}
	r.arc.mu.Lock()
	defer r.arc.mu.Unlock()

	if r.arc.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.arc.file.Name()); err == nil {
		return n
	}
	return r.arc.file.Name()
}

// Store remembers file to be put in the archive, file content is taken when
// report is closed.
func (r *Report) Store(name, file string) {
	if r == nil {
		return
	}
	if p, err := filepath.Abs(file); err == nil {
		file = p
	}
	r.arc.add(r.entryName(name), reportEntry{path: file})
}

// StoreData puts data in the archive under name.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	r.arc.add(r.entryName(name), reportEntry{data: data, stamp: time.Now()})
}

// StoreCopy takes file content now, for files which may be gone when report
// is closed.
func (r *Report) StoreCopy(name, file string) error {
	if r == nil {
		return nil
	}
	fi, err := os.Stat(file)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("'%s' is not a regular file", file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	r.arc.add(r.entryName(name), reportEntry{data: data, stamp: fi.ModTime()})
	return nil
}

// Close writes the archive. Views obtained with In share the archive, closing
// any of them closes it.
func (r *Report) Close() error {
	if r == nil {
		return nil
	}
	a := r.arc
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	defer func() {
		a.file.Close()
		a.file = nil
	}()
	return a.write()
}

func (a *reportArchive) write() error {
	zw := zip.NewWriter(a.file)

	now := time.Now()
	names := slices.Sorted(maps.Keys(a.entries))

	manifest := new(bytes.Buffer)
	for _, name := range names {
		e := a.entries[name]
		stamp := e.stamp
		if stamp.IsZero() {
			stamp = now
		}
		src := e.path
		if src == "" {
			src = fmt.Sprintf("<%d bytes>", len(e.data))
		}
		fmt.Fprintf(manifest, "%s\t%s\t%s\n", stamp.UTC().Format(time.UnixDate), name, src)
	}
	if err := addFile(zw, "MANIFEST", now, manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := a.entries[name]
		if e.path == "" {
			if err := addFile(zw, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		// files which are gone by now are skipped
		fi, err := os.Stat(e.path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		f, err := os.Open(e.path)
		if err != nil {
			return err
		}
		err = addFile(zw, name, fi.ModTime(), f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
