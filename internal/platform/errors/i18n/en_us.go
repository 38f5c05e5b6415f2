package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNotAuthorized       = "NOT_AUTHORIZED"
	CodeNotHolder           = "NOT_HOLDER"
	CodeInvalidRecipient    = "INVALID_RECIPIENT"
	CodeAlreadyMinted       = "ALREADY_MINTED"
	CodeMissingMetadata     = "MISSING_METADATA"
	CodeMetadataNotAccepted = "METADATA_NOT_ACCEPTED"
	CodeUnsafeRecipient     = "UNSAFE_RECIPIENT"
	CodeNonexistentToken    = "NONEXISTENT_TOKEN"
	CodeNotTransferable     = "NOT_TRANSFERABLE"
	CodeInvalidAddress      = "INVALID_ADDRESS"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeCallerTokenExpired  = "CALLER_TOKEN_EXPIRED"
	CodeInvalidFilter       = "INVALID_FILTER"
	CodeInvalidPageToken    = "INVALID_PAGE_TOKEN"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		CodeNotAuthorized:       "Only the collection administrator can do this",
		CodeNotHolder:           "Only the holder of token {{.TokenID}} can unequip it",
		CodeInvalidRecipient:    "Tokens cannot be minted to the zero address",
		CodeAlreadyMinted:       "{{.Holder}} already holds a token from this collection",
		CodeMissingMetadata:     "A token URI is required to mint",
		CodeMetadataNotAccepted: "This collection shares one token URI and does not accept per-token metadata",
		CodeUnsafeRecipient:     "{{.Recipient}} does not accept soulbound tokens",
		CodeNonexistentToken:    "{{if .Holder}}{{.Holder}} holds no token{{else}}Token {{.TokenID}} does not exist{{end}}",
		CodeNotTransferable:     "Soulbound tokens cannot be transferred",
		CodeInvalidAddress:      "The zero address is not a valid holder",
		CodeUnauthenticated:     "A valid caller token is required",
		CodeCallerTokenExpired:  "The caller token has expired",
		CodeInvalidFilter:       "The transfer filter is invalid",
		CodeInvalidPageToken:    "The page token is invalid",
	},
}
