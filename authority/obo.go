package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkerhoas/outlook-relay/internal/apperrors"
)

const (
	// grantTypeJWTBearer is the assertion grant used by the Azure AD
	// on-behalf-of exchange.
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// maxResponseBodySize caps how much of a provider response is read (1 MB)
	maxResponseBodySize = 1 << 20
)

// oauthError is an RFC 6749 error response body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// oboResponse decodes the provider's on-behalf-of token response.
type oboResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AcquireOnBehalfOf exchanges an already-validated inbound user token for a
// new token scoped to the downstream audience, using this service's client
// credentials as the confidential party. The assertion must have passed
// inbound validation before this is called.
func (c *Client) AcquireOnBehalfOf(ctx context.Context, assertion string, scopes []string) (*TokenSet, error) {
	data := url.Values{}
	data.Set("grant_type", grantTypeJWTBearer)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("assertion", assertion)
	data.Set("requested_token_use", "on_behalf_of")
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", apperrors.ErrOboExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrOboExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", apperrors.ErrOboExchangeFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var oauthErr oauthError
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("%w: provider error %q (status %d): %s",
				apperrors.ErrOboExchangeFailed, oauthErr.Error, resp.StatusCode, oauthErr.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: provider returned status %d", apperrors.ErrOboExchangeFailed, resp.StatusCode)
	}

	var tokenResp oboResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", apperrors.ErrOboExchangeFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider response missing access_token", apperrors.ErrOboExchangeFailed)
	}

	ts := &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.ExpiresIn > 0 {
		ts.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return ts, nil
}
