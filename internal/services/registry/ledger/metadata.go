package ledger

import (
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

// Variant names a metadata policy.
type Variant string

const (
	// VariantSharedURI collections point every token at one metadata URI.
	VariantSharedURI Variant = "shared_uri"
	// VariantPerTokenURI collections store a URI per token at mint time.
	VariantPerTokenURI Variant = "per_token_uri"
)

// ParseVariant parses a configured variant name.
func ParseVariant(value string) (Variant, bool) {
	switch Variant(strings.ToLower(strings.TrimSpace(value))) {
	case VariantSharedURI:
		return VariantSharedURI, true
	case VariantPerTokenURI:
		return VariantPerTokenURI, true
	default:
		return "", false
	}
}

// MetadataPolicy decides how token metadata is captured and resolved, and how
// transfer rejections are reported. The two implementations are returned by
// SharedURI and PerTokenURI.
type MetadataPolicy interface {
	Variant() Variant
	// SharedURI returns the collection-wide URI, if any.
	SharedURI() string

	// prepare validates the uri supplied to a mint and returns what to store.
	prepare(uri string) (string, error)
	resolve(token storage.Token) string
	rejectTransfer(id uint64) error
}

// SharedURI returns the policy for collections whose tokens all resolve to uri.
func SharedURI(uri string) MetadataPolicy {
	return sharedURI{uri: uri}
}

// PerTokenURI returns the policy for collections that capture a URI per mint.
func PerTokenURI() MetadataPolicy {
	return perTokenURI{}
}

type sharedURI struct {
	uri string
}

func (p sharedURI) Variant() Variant  { return VariantSharedURI }
func (p sharedURI) SharedURI() string { return p.uri }

func (p sharedURI) prepare(uri string) (string, error) {
	if uri != "" {
		return "", apperrors.New(apperrors.CodeMetadataNotAccepted, "collection does not accept per-token uri")
	}
	return "", nil
}

func (p sharedURI) resolve(storage.Token) string { return p.uri }

func (p sharedURI) rejectTransfer(id uint64) error {
	return apperrors.WithMetadata(apperrors.CodeNotTransferable, "token is not transferable", map[string]string{
		"TokenID": strconv.FormatUint(id, 10),
	})
}

type perTokenURI struct{}

func (perTokenURI) Variant() Variant  { return VariantPerTokenURI }
func (perTokenURI) SharedURI() string { return "" }

func (perTokenURI) prepare(uri string) (string, error) {
	if uri == "" {
		return "", apperrors.New(apperrors.CodeMissingMetadata, "token uri is required")
	}
	return uri, nil
}

func (perTokenURI) resolve(token storage.Token) string { return token.URI }

func (perTokenURI) rejectTransfer(id uint64) error {
	return apperrors.WithMetadata(apperrors.CodeNotTransferable, "transfer not implemented", map[string]string{
		"Error":    "NotImplemented",
		"Selector": NotImplementedSelector.String(),
		"TokenID":  strconv.FormatUint(id, 10),
	})
}
