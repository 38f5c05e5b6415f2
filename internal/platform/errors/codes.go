// Package errors provides structured registry errors with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Access errors
	CodeNotAuthorized Code = "NOT_AUTHORIZED"
	CodeNotHolder     Code = "NOT_HOLDER"

	// Mint errors
	CodeInvalidRecipient    Code = "INVALID_RECIPIENT"
	CodeAlreadyMinted       Code = "ALREADY_MINTED"
	CodeMissingMetadata     Code = "MISSING_METADATA"
	CodeMetadataNotAccepted Code = "METADATA_NOT_ACCEPTED"
	CodeUnsafeRecipient     Code = "UNSAFE_RECIPIENT"

	// Token errors
	CodeNonexistentToken Code = "NONEXISTENT_TOKEN"
	CodeNotTransferable  Code = "NOT_TRANSFERABLE"
	CodeInvalidAddress   Code = "INVALID_ADDRESS"

	// Caller identity errors
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeCallerTokenExpired Code = "CALLER_TOKEN_EXPIRED"

	// Query errors
	CodeInvalidFilter    Code = "INVALID_FILTER"
	CodeInvalidPageToken Code = "INVALID_PAGE_TOKEN"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidRecipient,
		CodeInvalidAddress,
		CodeMissingMetadata,
		CodeMetadataNotAccepted,
		CodeInvalidFilter,
		CodeInvalidPageToken:
		return codes.InvalidArgument

	// PermissionDenied - caller lacks the capability
	case CodeNotAuthorized,
		CodeNotHolder:
		return codes.PermissionDenied

	// Unauthenticated - caller identity missing or invalid
	case CodeUnauthenticated,
		CodeCallerTokenExpired:
		return codes.Unauthenticated

	// FailedPrecondition - state doesn't allow operation
	case CodeNotTransferable,
		CodeUnsafeRecipient:
		return codes.FailedPrecondition

	// NotFound - token doesn't exist
	case CodeNonexistentToken:
		return codes.NotFound

	// AlreadyExists - single issuance per holder
	case CodeAlreadyMinted:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
