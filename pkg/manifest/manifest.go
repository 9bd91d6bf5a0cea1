// Package manifest reads the zip-shaped package archives this feed ingests:
// it locates and parses the XML manifest document inside an archive and
// computes a streamed content hash, without ever extracting the archive to
// disk.
//
// Grounded on the teacher's pkg/archive, which already opens archives as an
// fs.FS via github.com/mholt/archives for extraction; this package reuses
// that same open-as-fs.FS technique read-only instead of walking the whole
// tree to extract it. The manifest document itself is parsed with
// encoding/xml — see DESIGN.md for why no pack library covers that.
package manifest

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/mholt/archives"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
)

// symbolsExtension is the reserved file extension that marks a symbols
// archive: any entry bearing it inside the package flags the whole archive
// as symbols content.
const symbolsExtension = ".pdb"

// HashAlgorithm selects the digest algorithm used for PackageHash.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	SHA512 HashAlgorithm = "sha512"
)

func (a HashAlgorithm) new() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA512, "":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("manifest: unsupported hash algorithm %q", a)
	}
}

// nuspec mirrors the subset of manifest fields this feed's catalog.Package
// cares about. Field names follow the XML element names of the manifest
// format this spec targets.
type nuspec struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		ID                       string `xml:"id"`
		Version                 string `xml:"version"`
		Title                    string `xml:"title"`
		Authors                  string `xml:"authors"`
		Description              string `xml:"description"`
		Summary                  string `xml:"summary"`
		ReleaseNotes             string `xml:"releaseNotes"`
		Copyright                string `xml:"copyright"`
		Tags                     string `xml:"tags"`
		ProjectURL               string `xml:"projectUrl"`
		LicenseURL               string `xml:"licenseUrl"`
		IconURL                  string `xml:"iconUrl"`
		MinClientVersion         string `xml:"minClientVersion,attr"`
		RequireLicenseAcceptance bool   `xml:"requireLicenseAcceptance"`
		DevelopmentDependency    bool   `xml:"developmentDependency"`
		DependencySets           struct {
			Groups []struct {
				TargetFramework string `xml:"targetFramework,attr"`
				Dependencies    []struct {
					ID      string `xml:"id,attr"`
					Version string `xml:"version,attr"`
				} `xml:"dependency"`
			} `xml:"group"`
			Flat []struct {
				ID      string `xml:"id,attr"`
				Version string `xml:"version,attr"`
			} `xml:"dependency"`
		} `xml:"dependencies"`
		FrameworkAssemblies struct {
			References []struct {
				TargetFramework string `xml:"targetFramework,attr"`
			} `xml:"frameworkAssembly"`
		} `xml:"frameworkAssemblies"`
	} `xml:"metadata"`
}

// Manifest is the parsed result of reading one archive: the manifest fields
// mapped onto catalog.Package (id/version/hash left for the caller to set,
// since normalization needs pkg/semver which this package does not import to
// avoid a dependency cycle with pkg/feedlayout) plus the raw fields needed to
// construct one.
type Manifest struct {
	ID                        string
	Version                   string
	Title                     string
	Authors                   string
	Description               string
	Summary                   string
	ReleaseNotes              string
	Copyright                 string
	Tags                      string
	ProjectURL                string
	LicenseURL                string
	IconURL                   string
	MinClientVersion          string
	RequireLicenseAcceptance  bool
	DevelopmentDependency     bool
	SupportedTargetFrameworks []string
	DependencySets            []catalog.DependencySet
	IsSymbols                 bool

	// RawXML is the manifest entry's raw bytes, as found inside the archive,
	// for the caller that needs to write it out verbatim as the on-disk
	// manifest sidecar copy.
	RawXML []byte
}

// Read opens the archive at archivePath, locates its single *.nuspec entry,
// parses it, and computes a content hash over the whole archive file using
// algo (SHA-512 if empty). It returns the parsed Manifest and the base64
// digest.
func Read(ctx context.Context, archivePath string, algo HashAlgorithm) (*Manifest, string, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, "", fmt.Errorf("manifest: open archive %s: %w", archivePath, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	m, err := parseManifest(fsys)
	if err != nil {
		return nil, "", err
	}

	if detectSymbols(fsys) {
		m.IsSymbols = true
	}

	digest, err := hashFile(archivePath, algo)
	if err != nil {
		return nil, "", err
	}

	return m, digest, nil
}

func parseManifest(fsys fs.FS) (*Manifest, error) {
	var manifestPath string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(path.Ext(p), ".nuspec") {
			manifestPath = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: scan archive for manifest entry: %w", err)
	}
	if manifestPath == "" {
		return nil, fmt.Errorf("manifest: no .nuspec entry found in archive")
	}

	f, err := fsys.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", manifestPath, err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", manifestPath, err)
	}

	var doc nuspec
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", manifestPath, err)
	}

	m := fromNuspec(doc)
	m.RawXML = raw
	return m, nil
}

func fromNuspec(doc nuspec) *Manifest {
	md := doc.Metadata
	m := &Manifest{
		ID:                       md.ID,
		Version:                  md.Version,
		Title:                    md.Title,
		Authors:                  md.Authors,
		Description:              md.Description,
		Summary:                  md.Summary,
		ReleaseNotes:             md.ReleaseNotes,
		Copyright:                md.Copyright,
		Tags:                     md.Tags,
		ProjectURL:               md.ProjectURL,
		LicenseURL:               md.LicenseURL,
		IconURL:                  md.IconURL,
		MinClientVersion:         md.MinClientVersion,
		RequireLicenseAcceptance: md.RequireLicenseAcceptance,
		DevelopmentDependency:    md.DevelopmentDependency,
	}

	frameworks := make(map[string]struct{})
	for _, g := range md.DependencySets.Groups {
		var deps []catalog.Dependency
		for _, d := range g.Dependencies {
			deps = append(deps, catalog.Dependency{ID: d.ID, VersionRange: d.Version})
		}
		m.DependencySets = append(m.DependencySets, catalog.DependencySet{
			TargetFramework: g.TargetFramework,
			Dependencies:    deps,
		})
		if g.TargetFramework != "" {
			frameworks[g.TargetFramework] = struct{}{}
		}
	}
	if len(md.DependencySets.Flat) > 0 {
		var deps []catalog.Dependency
		for _, d := range md.DependencySets.Flat {
			deps = append(deps, catalog.Dependency{ID: d.ID, VersionRange: d.Version})
		}
		m.DependencySets = append(m.DependencySets, catalog.DependencySet{Dependencies: deps})
	}
	for _, ref := range md.FrameworkAssemblies.References {
		if ref.TargetFramework != "" {
			frameworks[ref.TargetFramework] = struct{}{}
		}
	}
	for tf := range frameworks {
		m.SupportedTargetFrameworks = append(m.SupportedTargetFrameworks, tf)
	}

	return m
}

func detectSymbols(fsys fs.FS) bool {
	found := false
	_ = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(path.Ext(p), symbolsExtension) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func hashFile(archivePath string, algo HashAlgorithm) (string, error) {
	h, err := algo.new()
	if err != nil {
		return "", err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("manifest: open %s for hashing: %w", archivePath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("manifest: hash %s: %w", archivePath, err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
