// Package address parses model addresses: plain model IDs and composite
// Bedrock resource locators (ARNs).
package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAddress is returned when a raw model address can be neither parsed
// as a composite locator nor used as a plain model ID.
var ErrInvalidAddress = errors.New("address: invalid model address")

// ResourceKind classifies the resource a composite locator points at.
type ResourceKind int

const (
	KindNone ResourceKind = iota // plain model ID
	KindBaseModel
	KindProvisioned
	KindCustomModel
	KindInferenceProfile
	KindRouter
)

func (k ResourceKind) String() string {
	switch k {
	case KindBaseModel:
		return "base-model"
	case KindProvisioned:
		return "provisioned"
	case KindCustomModel:
		return "custom-model"
	case KindInferenceProfile:
		return "inference-profile"
	case KindRouter:
		return "router"
	default:
		return "none"
	}
}

var resourceKinds = map[string]ResourceKind{
	"foundation-model":              KindBaseModel,
	"provisioned-model":             KindProvisioned,
	"custom-model":                  KindCustomModel,
	"inference-profile":             KindInferenceProfile,
	"application-inference-profile": KindInferenceProfile,
	"prompt-router":                 KindRouter,
	"default-prompt-router":         KindRouter,
}

// arnRe matches arn:<partition>:bedrock:<region>:<account>:<resource-type>/<resource-id>.
// Foundation model ARNs carry an empty account.
var arnRe = regexp.MustCompile(`^arn:(aws|aws-cn|aws-us-gov):bedrock:([a-z]{2}(?:-[a-z]+)+-\d+):(\d{12})?:([a-z-]+)/(\S+)$`)

// Descriptor is the structured form of a raw model address.
type Descriptor struct {
	Raw         string
	IsComposite bool

	// Composite locator parts; empty for plain IDs.
	Partition    string
	Region       string
	Account      string
	Kind         ResourceKind
	ResourceType string
	ResourceID   string

	// BaseModelID never carries a region prefix.
	BaseModelID string
	// CrossRegion is true when a known multi-region prefix was stripped.
	CrossRegion bool
	// Prefix is the outermost stripped prefix ("us.", "global.", ...), if any.
	Prefix string
}

// Parse turns a raw model address into a Descriptor.
func Parse(raw string) (Descriptor, error) {
	if err := checkRaw(raw); err != nil {
		return Descriptor{}, err
	}

	if !strings.HasPrefix(raw, "arn:") {
		base, prefix, cross := StripRegionPrefix(raw)
		return Descriptor{
			Raw:         raw,
			BaseModelID: base,
			CrossRegion: cross,
			Prefix:      prefix,
		}, nil
	}

	m := arnRe.FindStringSubmatch(raw)
	if m == nil {
		return Descriptor{}, fmt.Errorf("%w: %q is not a bedrock resource ARN", ErrInvalidAddress, raw)
	}
	kind, ok := resourceKinds[m[4]]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: unsupported resource type %q", ErrInvalidAddress, m[4])
	}

	d := Descriptor{
		Raw:          raw,
		IsComposite:  true,
		Partition:    m[1],
		Region:       m[2],
		Account:      m[3],
		Kind:         kind,
		ResourceType: m[4],
		ResourceID:   m[5],
	}

	id := d.ResourceID
	if kind == KindCustomModel {
		// custom-model/<base-model-id>/<suffix>
		if before, _, found := strings.Cut(id, "/"); found {
			id = before
		}
	}
	d.BaseModelID, d.Prefix, d.CrossRegion = StripRegionPrefix(id)
	return d, nil
}

// Locator rebuilds the composite locator string from its parts.
// For plain IDs it returns Raw.
func (d Descriptor) Locator() string {
	if !d.IsComposite {
		return d.Raw
	}
	return fmt.Sprintf("arn:%s:bedrock:%s:%s:%s/%s", d.Partition, d.Region, d.Account, d.ResourceType, d.ResourceID)
}

// RegionMismatchError reports that a composite locator names a different region
// than the configured one. It is informational: the locator's region is used.
type RegionMismatchError struct {
	Locator    string
	Configured string
}

func (e *RegionMismatchError) Error() string {
	return fmt.Sprintf("address: locator region %s differs from configured region %s; using %s",
		e.Locator, e.Configured, e.Locator)
}

// CheckRegion returns a *RegionMismatchError when d is composite and its region
// differs from the configured preference. A nil return means no conflict.
func CheckRegion(d Descriptor, configured string) error {
	if !d.IsComposite || configured == "" || d.Region == configured {
		return nil
	}
	return &RegionMismatchError{Locator: d.Region, Configured: configured}
}

// EffectiveRegion returns the region requests should go to: the locator's region
// when present, otherwise the configured one.
func EffectiveRegion(d Descriptor, configured string) string {
	if d.IsComposite && d.Region != "" {
		return d.Region
	}
	return configured
}

// ParsePlain takes raw as an opaque model name: no locator grammar and no
// prefix detection. Backends outside Bedrock name models this way
// ("hf.co/org/model.gguf", "gpt-4o").
func ParsePlain(raw string) (Descriptor, error) {
	if err := checkRaw(raw); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Raw: raw, BaseModelID: raw}, nil
}

func checkRaw(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.ContainsFunc(raw, isSpace) {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidAddress, raw)
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
