package address

import (
	"regexp"
	"strings"
)

// regionPrefix is a known cross-region inference profile prefix.
type regionPrefix struct {
	prefix      string
	region      string // canonical region the prefix routes from
	multiRegion bool
}

// knownPrefixes is ordered longest first so "us-gov." wins over "us.".
var knownPrefixes = []regionPrefix{
	{prefix: "us-gov.", region: "us-gov-west-1", multiRegion: true},
	{prefix: "global.", region: "", multiRegion: true},
	{prefix: "apac.", region: "ap-southeast-1", multiRegion: true},
	{prefix: "us.", region: "us-east-1", multiRegion: true},
	{prefix: "eu.", region: "eu-west-1", multiRegion: true},
	{prefix: "ap.", region: "ap-southeast-1", multiRegion: true},
	{prefix: "ca.", region: "ca-central-1", multiRegion: true},
	{prefix: "sa.", region: "sa-east-1", multiRegion: true},
	{prefix: "jp.", region: "ap-northeast-1", multiRegion: true},
	{prefix: "au.", region: "ap-southeast-2", multiRegion: true},
}

// profilePrefixes maps a region family to the inference profile prefix used
// when cross-region inference is requested for a plain model ID.
var profilePrefixes = []struct {
	regionPrefix string
	prefix       string
}{
	{"us-gov-", "us-gov."},
	{"us-", "us."},
	{"eu-", "eu."},
	{"ap-", "apac."},
	{"ca-", "ca."},
	{"sa-", "sa."},
}

// genericPrefixRe matches "<token>.<rest>" where rest contains a further dot,
// e.g. an unknown "xy.vendor.model" profile prefix.
var genericPrefixRe = regexp.MustCompile(`^([a-z]{2,4})\.([^.]+\..+)$`)

// StripRegionPrefix removes any region prefix from id, repeating until none remains.
// It returns the stripped ID, the outermost prefix removed, and whether that
// prefix is a known multi-region one.
func StripRegionPrefix(id string) (base, prefix string, crossRegion bool) {
	base = id
	first := true
	for {
		p, multi, ok := detectPrefix(base)
		if !ok {
			return base, prefix, crossRegion
		}
		if first {
			prefix, crossRegion = p, multi
			first = false
		}
		base = strings.TrimPrefix(base, p)
	}
}

// detectPrefix checks the known table first, then the generic pattern.
func detectPrefix(id string) (string, bool, bool) {
	for _, kp := range knownPrefixes {
		if strings.HasPrefix(id, kp.prefix) && len(id) > len(kp.prefix) {
			return kp.prefix, kp.multiRegion, true
		}
	}
	if m := genericPrefixRe.FindStringSubmatch(id); m != nil {
		return m[1] + ".", false, true
	}
	return "", false, false
}

// PrefixRegion returns the canonical region for a known prefix, or "" when unknown.
func PrefixRegion(prefix string) string {
	for _, kp := range knownPrefixes {
		if kp.prefix == prefix {
			return kp.region
		}
	}
	return ""
}

// PrefixForRegion returns the cross-region inference profile prefix for an AWS region,
// e.g. "eu-central-1" -> "eu.". It returns "" when the region has no profile family.
func PrefixForRegion(region string) string {
	for _, pp := range profilePrefixes {
		if strings.HasPrefix(region, pp.regionPrefix) {
			return pp.prefix
		}
	}
	return ""
}
