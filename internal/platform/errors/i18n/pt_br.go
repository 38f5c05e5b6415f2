package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeNotAuthorized:       "Somente o administrador da coleção pode fazer isso",
		CodeNotHolder:           "Somente o portador do token {{.TokenID}} pode removê-lo",
		CodeInvalidRecipient:    "Tokens não podem ser emitidos para o endereço zero",
		CodeAlreadyMinted:       "{{.Holder}} já possui um token desta coleção",
		CodeMissingMetadata:     "Um URI de token é obrigatório para emitir",
		CodeMetadataNotAccepted: "Esta coleção compartilha um único URI e não aceita metadados por token",
		CodeUnsafeRecipient:     "{{.Recipient}} não aceita tokens soulbound",
		CodeNonexistentToken:    "{{if .Holder}}{{.Holder}} não possui token{{else}}O token {{.TokenID}} não existe{{end}}",
		CodeNotTransferable:     "Tokens soulbound não podem ser transferidos",
		CodeInvalidAddress:      "O endereço zero não é um portador válido",
		CodeUnauthenticated:     "Um token de chamador válido é obrigatório",
		CodeCallerTokenExpired:  "O token de chamador expirou",
		CodeInvalidFilter:       "O filtro de transferências é inválido",
		CodeInvalidPageToken:    "O token de página é inválido",
	},
}
