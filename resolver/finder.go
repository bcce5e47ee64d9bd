/* Copyright 2025 OOMOL, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package resolver

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/oomol/oocana/manifest"
	"github.com/oomol/oocana/util"

	"gopkg.in/yaml.v2"
)

// refKind classifies the path form of a block reference.
type refKind int

const (
	selfRef refKind = iota // self::<name>
	pkgRef                 // <pkg>::<name>
	svcRef                 // <pkg>::<svc>::<method>
	pathRef                // relative or absolute path
)

func classifyRef(ref string) refKind {
	if strings.HasPrefix(ref, "self::") {
		return selfRef
	}
	if strings.Contains(ref, "::") {
		parts := strings.Split(ref, "::")
		if 3 <= len(parts) {
			return svcRef
		}
		return pkgRef
	}
	return pathRef
}

// Finder locates manifest files for the references a flow makes.  A
// Finder is anchored at the flow's directory; resolving a subflow
// gets a new Finder anchored there.
type Finder struct {
	// BaseDir is the directory of the flow whose references we
	// resolve.
	BaseDir string

	SearchPaths     []string
	ExcludePackages []string

	// pkgVersion maps a package name to the latest version found
	// in the search paths, for directories named <pkg>-<version>.
	// A version pinned by the enclosing package.oo.yaml wins.
	pkgVersion map[string]string

	cache map[string]string
}

// NewFinder makes a Finder anchored at the directory of the given
// flow file (or at the directory itself).
func NewFinder(flowPath string, searchPaths, excludePackages []string) *Finder {
	baseDir := flowPath
	if info, err := os.Stat(flowPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(flowPath)
	}
	f := &Finder{
		BaseDir:         baseDir,
		SearchPaths:     searchPaths,
		ExcludePackages: excludePackages,
		pkgVersion:      map[string]string{},
		cache:           map[string]string{},
	}
	f.collectPackageVersions()
	f.applyPinnedVersions(baseDir)
	return f
}

// collectPackageVersions scans the search paths for directories named
// <pkg>-<version> and remembers the highest version per package.
func (f *Finder) collectPackageVersions() {
	for _, sp := range f.SearchPaths {
		entries, err := ioutil.ReadDir(sp)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			pkgFile := filepath.Join(sp, entry.Name(), "package.oo.yaml")
			pkg, err := readPackage(pkgFile)
			if err != nil || pkg.Version == "" {
				continue
			}
			name := pkg.Name
			if name == "" {
				name = strings.TrimSuffix(entry.Name(), "-"+pkg.Version)
			}
			if entry.Name() == name {
				// Unversioned directory; nothing to reconstruct.
				continue
			}
			if prev, have := f.pkgVersion[name]; !have || versionLess(prev, pkg.Version) {
				f.pkgVersion[name] = pkg.Version
			}
		}
	}
}

// applyPinnedVersions overrides collected versions with the ones the
// enclosing package's dependencies map pins.
func (f *Finder) applyPinnedVersions(dir string) {
	for d := dir; ; d = filepath.Dir(d) {
		pkg, err := readPackage(filepath.Join(d, "package.oo.yaml"))
		if err == nil {
			for name, version := range pkg.Dependencies {
				f.pkgVersion[name] = version
			}
			return
		}
		if d == filepath.Dir(d) {
			return
		}
	}
}

func readPackage(path string) (*rawPackage, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg rawPackage
	if err := yaml.Unmarshal(bs, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// versionLess compares dotted numeric versions, falling back to a
// string comparison on malformed components.
func versionLess(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := atoi(as[i])
		bn, berr := atoi(bs[i])
		if aerr == nil && berr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}

func atoi(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || '9' < r {
			return 0, &manifest.Invalid{Path: s, Detail: "not a number"}
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// pkgDir returns the directory name for a package, reconstructing the
// <pkg>-<version> form when a version is known.
func (f *Finder) pkgDir(pkg string) string {
	if v, have := f.pkgVersion[pkg]; have && v != "" {
		return pkg + "-" + v
	}
	return pkg
}

func (f *Finder) excluded(pkg string) bool {
	for _, x := range f.ExcludePackages {
		if x == pkg {
			return true
		}
	}
	return false
}

// FindBlock resolves a task-block reference to a block.oo.yaml path.
//
// Path forms:
//
//	self::<name>        <flow-dir>/../blocks/<name>/block.oo.yaml
//	<pkg>::<name>       <P>/<pkg>/<name>/block.oo.yaml per search path
//	anything else       direct filesystem resolution
func (f *Finder) FindBlock(ref string) (string, error) {
	if path, have := f.cache["block-"+ref]; have {
		return path, nil
	}
	var path string
	switch classifyRef(ref) {
	case selfRef:
		name := strings.TrimPrefix(ref, "self::")
		path = f.existing(filepath.Join(f.BaseDir, "..", "blocks", name, "block.oo.yaml"))
	case pkgRef:
		parts := strings.SplitN(ref, "::", 2)
		if f.excluded(parts[0]) {
			return "", &manifest.NotFound{Ref: ref}
		}
		path = f.searchFile(filepath.Join(f.pkgDir(parts[0]), parts[1], "block.oo.yaml"))
	case pathRef:
		path = f.direct(ref, "block.oo.yaml")
	default:
		return "", &manifest.NotFound{Ref: ref}
	}
	if path == "" {
		return "", &manifest.NotFound{Ref: ref}
	}
	f.cache["block-"+ref] = path
	util.Logf("Finder.FindBlock %s -> %s", ref, path)
	return path, nil
}

// FindService resolves a <pkg>::<svc>::<method> reference to a
// service.oo.yaml path and the member block name.
func (f *Finder) FindService(ref string) (string, string, error) {
	parts := strings.Split(ref, "::")
	if len(parts) != 3 {
		return "", "", &manifest.BadReference{Ref: ref, Detail: "want <pkg>::<service>::<method>"}
	}
	pkg, svc, method := parts[0], parts[1], parts[2]
	if f.excluded(pkg) {
		return "", "", &manifest.NotFound{Ref: ref}
	}
	path := f.searchFile(filepath.Join(f.pkgDir(pkg), svc, "service.oo.yaml"))
	if path == "" {
		return "", "", &manifest.NotFound{Ref: ref}
	}
	return path, method, nil
}

// FindFlow resolves a subflow reference to a subflow.oo.yaml (or
// flow.oo.yaml) path.
func (f *Finder) FindFlow(ref string) (string, error) {
	if path, have := f.cache["flow-"+ref]; have {
		return path, nil
	}
	var path string
	switch classifyRef(ref) {
	case selfRef:
		name := strings.TrimPrefix(ref, "self::")
		for _, base := range []string{"subflow.oo.yaml", "flow.oo.yaml"} {
			if path = f.existing(filepath.Join(f.BaseDir, "..", "subflows", name, base)); path != "" {
				break
			}
		}
	case pkgRef:
		parts := strings.SplitN(ref, "::", 2)
		if f.excluded(parts[0]) {
			return "", &manifest.NotFound{Ref: ref}
		}
		for _, base := range []string{"subflow.oo.yaml", "flow.oo.yaml"} {
			if path = f.searchFile(filepath.Join(f.pkgDir(parts[0]), parts[1], base)); path != "" {
				break
			}
		}
	case pathRef:
		path = f.direct(ref, "flow.oo.yaml")
		if path == "" {
			path = f.direct(ref, "subflow.oo.yaml")
		}
	default:
		return "", &manifest.NotFound{Ref: ref}
	}
	if path == "" {
		return "", &manifest.NotFound{Ref: ref}
	}
	f.cache["flow-"+ref] = path
	util.Logf("Finder.FindFlow %s -> %s", ref, path)
	return path, nil
}

// searchFile tries each search path in order; first hit wins.  The
// finder's base dir is the last resort.
func (f *Finder) searchFile(rel string) string {
	for _, sp := range f.SearchPaths {
		if path := f.existing(filepath.Join(sp, rel)); path != "" {
			return path
		}
	}
	return f.existing(filepath.Join(f.BaseDir, rel))
}

// direct resolves a path reference: the file itself, or a directory
// containing the given manifest base name.
func (f *Finder) direct(ref, base string) string {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.BaseDir, path)
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return f.existing(filepath.Join(path, base))
		}
		return canonical(path)
	}
	return ""
}

func (f *Finder) existing(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return canonical(path)
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
