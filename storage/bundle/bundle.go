// Package bundle moves archived evidence between stores as a deterministic
// TAR file: one blocks/<cid> entry per object plus an optional index.json
// describing the evidence each block holds.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"noema.dev/ledgerkit/cidutil"
	"noema.dev/ledgerkit/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names to CIDs.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Filter selects evidence for ExportEvidence. Zero fields match everything.
type Filter struct {
	Kind    string
	Subject string
	// Since is inclusive, in unix seconds.
	Since int64
}

func (f Filter) match(ev storage.Evidence) bool {
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if f.Subject != "" && ev.Subject != f.Subject {
		return false
	}
	return ev.RecordedAt >= f.Since
}

// Source is a store that can enumerate its objects.
type Source interface {
	storage.CAS
	storage.Lister
}

// ExportEvidence writes every evidence record in src matching f and returns
// the CIDs written. Objects that are not evidence are skipped.
func ExportEvidence(w io.Writer, src Source, f Filter, opts ExportOptions) ([]cid.Cid, error) {
	ids, err := src.List()
	if err != nil {
		return nil, err
	}
	var picked []cid.Cid
	for _, id := range ids {
		ev, err := storage.Load(src, id)
		if errors.Is(err, storage.ErrInvalidEvidence) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f.match(ev) {
			picked = append(picked, id)
		}
	}
	if err := Export(w, src, picked, opts); err != nil {
		return nil, err
	}
	return picked, nil
}

// Export writes a deterministic TAR bundle containing the blocks for the given CIDs.
//
// Entry order is lexicographic and TAR headers are normalized. All exported
// bytes are validated against their CIDs.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) (err error) {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	blocks := make([]indexBlock, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			return err
		}
		if err := cidutil.Verify(id, b); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrCIDMismatch, err)
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return err
		}
		blk := indexBlock{CID: s, Size: len(b)}
		if ev, err := storage.Load(cas, id); err == nil {
			blk.Kind, blk.Subject, blk.RecordedAt = ev.Kind, ev.Subject, ev.RecordedAt
		}
		blocks = append(blocks, blk)
	}

	if !opts.IncludeIndex {
		return nil
	}
	idx := indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Blocks:    blocks,
	}
	if len(opts.Labels) > 0 {
		keys := make([]string, 0, len(opts.Labels))
		for k := range opts.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "" {
				return fmt.Errorf("bundle: empty label key")
			}
			v := opts.Labels[k]
			if !v.Defined() {
				return storage.ErrInvalidCID
			}
			idx.Labels = append(idx.Labels, indexLabel{Name: k, CID: v.String()})
		}
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(b, '\n'))
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
	// EvidenceOnly rejects blocks that are not valid evidence records.
	EvidenceOnly bool
}

// Import reads a bundle from r into cas with default options.
func Import(r io.Reader, cas storage.CAS) ([]cid.Cid, error) {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions reads a bundle from r and imports all blocks into cas,
// returning their CIDs in bundle order. Each block must match both its entry
// name and its computed CID.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) ([]cid.Cid, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var out []cid.Cid

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		// Non-authoritative metadata.
		if name == "index.json" {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}

		cidStr, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry: %s", name)
		}
		id, err := cidutil.Parse(cidStr)
		if err != nil {
			return out, fmt.Errorf("%w: %v", storage.ErrInvalidCID, err)
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if err := cidutil.Verify(id, payload); err != nil {
			return out, fmt.Errorf("%w: %v", storage.ErrCIDMismatch, err)
		}
		if _, dup := seen[cidStr]; dup {
			return out, fmt.Errorf("bundle: duplicate block entry: %s", cidStr)
		}
		seen[cidStr] = struct{}{}

		if opts.EvidenceOnly {
			if err := checkEvidence(id, payload); err != nil {
				return out, err
			}
		}
		putID, err := cas.Put(payload)
		if err != nil {
			return out, err
		}
		if !putID.Equals(id) {
			return out, storage.ErrCIDMismatch
		}
		out = append(out, id)
	}
}

func checkEvidence(id cid.Cid, payload []byte) error {
	scratch := storage.NewMemory()
	if _, err := scratch.Put(payload); err != nil {
		return err
	}
	if _, err := storage.Load(scratch, id); err != nil {
		return fmt.Errorf("bundle: block %s: %w", id, err)
	}
	return nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID        string `json:"cid"`
	Size       int    `json:"size"`
	Kind       string `json:"kind,omitempty"`
	Subject    string `json:"subject,omitempty"`
	RecordedAt int64  `json:"recordedAt,omitempty"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Format:   tar.FormatUSTAR,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
