package stac

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/citymetrics/ud-data-fetcher/model"
	"github.com/citymetrics/ud-data-fetcher/util"
)

var requestSASToken = util.ReqByObjJSON

// tokenRefreshMargin forces a refresh shortly before the advertised
// expiry so in-flight asset fetches do not outlive their signature
const tokenRefreshMargin = 5 * time.Minute

// signedHost marks the catalog whose assets require SAS signing
const signedHost = "planetarycomputer.microsoft.com"

// ShouldSign reports whether assets from the given catalog need a
// shared access signature appended before fetching
func ShouldSign(catalogURL string) bool {
	parsed, err := url.Parse(catalogURL)
	if err != nil {
		return false
	}
	return parsed.Host == signedHost
}

// Signer appends shared access signatures to asset hrefs, fetching and
// caching one token per collection.
type Signer struct {
	context *Context
	mutex   sync.Mutex
	tokens  map[string]cachedToken
}

type cachedToken struct {
	token  string
	expiry time.Time
}

// NewSigner returns a Signer backed by the context's token endpoint
func NewSigner(context *Context) *Signer {
	return &Signer{context: context, tokens: make(map[string]cachedToken)}
}

// SignURL returns the asset href with a collection token appended
func (s *Signer) SignURL(collection, href string) (string, error) {
	token, err := s.collectionToken(collection)
	if err != nil {
		return "", err
	}
	separator := "?"
	if strings.Contains(href, "?") {
		separator = "&"
	}
	return href + separator + token, nil
}

func (s *Signer) collectionToken(collection string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cached, ok := s.tokens[collection]; ok && time.Until(cached.expiry) > tokenRefreshMargin {
		return cached.token, nil
	}

	tokenURL := strings.TrimSuffix(s.context.SASTokenURL, "/") + "/token/" + collection
	var response sasTokenResponse
	if _, err := requestSASToken("GET", tokenURL, "", nil, &response); err != nil {
		return "", util.LogSimpleErr(s.context, fmt.Sprintf("Failed to request a SAS token for collection %v.", collection), err)
	}
	if response.Token == "" {
		tokenErr := util.Error{LogMsg: "SAS token response had no token",
			SimpleMsg: fmt.Sprintf("The signing endpoint returned an empty token for collection %v.", collection),
			URL:       tokenURL}
		return "", tokenErr.Log(s.context, "")
	}

	expiry, err := model.ParseSTACTime(response.Expiry)
	if err != nil {
		util.LogAlert(s.context, fmt.Sprintf("Could not parse SAS token expiry %q; treating the token as short-lived.", response.Expiry))
		expiry = time.Now().Add(tokenRefreshMargin + time.Minute)
	}
	s.tokens[collection] = cachedToken{token: response.Token, expiry: expiry}
	return response.Token, nil
}
