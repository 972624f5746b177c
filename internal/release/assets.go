package release

import "strings"

// archAliases lists the spellings release pipelines use for each architecture.
var archAliases = map[string][]string{
	"amd64": {"amd64", "x86_64", "x64"},
	"arm64": {"arm64", "aarch64"},
}

// assetExtensions are the payload formats the installer can unpack, in order of preference.
// The empty extension is a bare binary.
var assetExtensions = []string{"", ".tar.gz", ".tgz", ".tar.xz", ".tar.bz2", ".zip", ".7z"}

// skippedSuffixes mark supplemental files published next to the binaries.
var skippedSuffixes = []string{".sha256", ".sha512", ".sig", ".asc", ".pem", ".txt", ".json", ".sbom", ".deb", ".rpm"}

// SelectAsset picks the asset built for goos/goarch. Bare binaries win over archives.
func SelectAsset(assets []Asset, goos, goarch string) (Asset, bool) {
	aliases := archAliases[goarch]
	if len(aliases) == 0 {
		aliases = []string{goarch}
	}

	var best Asset
	bestRank := len(assetExtensions)
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if !strings.Contains(name, goos) || !containsAny(name, aliases) || hasAnySuffix(name, skippedSuffixes) {
			continue
		}
		rank := extensionRank(name)
		if rank < bestRank {
			best, bestRank = a, rank
		}
	}
	return best, bestRank < len(assetExtensions)
}

func extensionRank(name string) int {
	for i := len(assetExtensions) - 1; i > 0; i-- {
		if strings.HasSuffix(name, assetExtensions[i]) {
			return i
		}
	}
	// No archive extension: accept it as a bare binary only if it has no other dotted suffix
	// after the architecture, e.g. rig-linux-amd64 but not rig-linux-amd64.msi.
	base := name[strings.LastIndexAny(name, "-_")+1:]
	if strings.Contains(base, ".") {
		return len(assetExtensions)
	}
	return 0
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
