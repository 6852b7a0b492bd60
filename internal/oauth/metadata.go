package oauth

// Colores y plantilla que el PDS usa para el email de código de login.
const (
	BrandColor           = "#4a6741"
	BackgroundColor      = "#F2EBE4"
	EmailSubjectTemplate = "{{code}} — Your {{app_name}} code"
)

// ClientMetadata es el documento público de cliente OAuth (client_id = su URL).
type ClientMetadata struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name"`
	ClientURI               string   `json:"client_uri"`
	LogoURI                 string   `json:"logo_uri"`
	RedirectURIs            []string `json:"redirect_uris"`
	Scope                   string   `json:"scope"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ApplicationType         string   `json:"application_type"`
	DPoPBoundAccessTokens   bool     `json:"dpop_bound_access_tokens"`
	EmailTemplateURI        string   `json:"email_template_uri,omitempty"`
	EmailSubjectTemplate    string   `json:"email_subject_template,omitempty"`
	BrandColor              string   `json:"brand_color,omitempty"`
	BackgroundColor         string   `json:"background_color,omitempty"`
}

// Metadata arma el documento a partir de la config. Cliente público: sin secreto.
func (e *Engine) Metadata() ClientMetadata {
	base := e.cfg.PublicURL
	return ClientMetadata{
		ClientID:                e.cfg.ClientID(),
		ClientName:              e.cfg.AppName,
		ClientURI:               base,
		LogoURI:                 base + "/logo.png",
		RedirectURIs:            []string{e.cfg.RedirectURI()},
		Scope:                   e.cfg.Scope,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
		ApplicationType:         "web",
		DPoPBoundAccessTokens:   true,
		EmailTemplateURI:        base + "/email-template.html",
		EmailSubjectTemplate:    EmailSubjectTemplate,
		BrandColor:              BrandColor,
		BackgroundColor:         BackgroundColor,
	}
}
