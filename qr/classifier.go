// Package qr classifies scanned wallet payloads into verification requests.
// Payloads arrive in two shapes: URL-form deep links used by verifier demos,
// and JSON-form iden3comm authorization requests.
package qr

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.echoid.dev/verify/domain"
	"go.echoid.dev/verify/protocol"
)

// InvalidFormatError reports a payload that matches neither recognized wire
// shape. It is recoverable: the scan loop surfaces it and keeps running.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "invalid verification request format: " + e.Reason
}

func invalidFormat(format string, args ...any) error {
	return &InvalidFormatError{Reason: fmt.Sprintf(format, args...)}
}

// urlMarkers is the heuristic allow-list for URL-form payloads. Substring
// match only; this mirrors the accepted-input behavior existing integrations
// rely on and must not be tightened silently.
var urlMarkers = []string{"iden3-communication.io", "authorization", "polygon"}

// validTypes are the accepted type discriminators for JSON-form payloads,
// matched by substring like the reference parser does.
var validTypes = []string{
	protocol.AuthorizationRequestType,
	protocol.ContractInvokeRequestType,
	protocol.MediaTypePlainJSON,
	"auth-request",
	"authorization-request",
}

// Classifier turns scanned payloads into verification requests.
type Classifier struct {
	// StrictTypes disables the substring marker heuristic for URL-form
	// payloads and requires an exact type URI for JSON-form ones. Off by
	// default to keep the reference accepted-input set.
	StrictTypes bool
}

// Classify parses an arbitrary scanned string. URL-form payloads are
// detected by scheme prefix, everything else must be a JSON authorization
// request. Returns *InvalidFormatError on any shape violation.
func (c *Classifier) Classify(payload string) (*domain.VerificationRequest, error) {
	if strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") {
		return c.classifyURL(payload)
	}
	return c.classifyJSON(payload)
}

func (c *Classifier) classifyURL(payload string) (*domain.VerificationRequest, error) {
	u, err := url.Parse(payload)
	if err != nil {
		return nil, invalidFormat("unparseable URL: %v", err)
	}

	if !c.urlAccepted(payload) {
		return nil, invalidFormat("URL carries no known verification marker")
	}

	params := u.Query()
	requestID := newRequestID("url-req")

	proofType := "ProofOfLife"
	lower := strings.ToLower(payload)
	switch {
	case strings.Contains(lower, "age"):
		proofType = "AgeVerification"
	case strings.Contains(lower, "membership"):
		proofType = "MembershipProof"
	}

	sessionID := params.Get("sessionId")
	if sessionID == "" {
		sessionID = requestID
	}
	callbackURL := params.Get("callback")
	if callbackURL == "" {
		callbackURL = payload
	}
	name := params.Get("requester")
	if name == "" {
		name = "Polygon ID Verifier"
	}
	did := params.Get("did")
	if did == "" {
		did = "did:polygonid:polygon:main:verifier"
	}
	purpose := params.Get("reason")
	if purpose == "" {
		purpose = proofType + " verification"
	}

	original, _ := json.Marshal(map[string]any{"url": payload, "params": flatten(params)})

	return &domain.VerificationRequest{
		ID:          requestID,
		SessionID:   sessionID,
		CallbackURL: callbackURL,
		Requester:   domain.Requester{Name: name, DID: did},
		RequestedCredentials: []domain.RequestedCredential{
			{Type: proofType, RequiredFields: []string{"identity"}},
		},
		Purpose:        purpose,
		CreatedAt:      time.Now().UTC(),
		Status:         domain.RequestStatusPending,
		OriginalQRData: original,
	}, nil
}

func (c *Classifier) classifyJSON(payload string) (*domain.VerificationRequest, error) {
	var msg protocol.AuthorizationRequest
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, invalidFormat("not valid JSON: %v", err)
	}

	if msg.Body.CallbackURL == "" {
		return nil, invalidFormat("missing callback URL")
	}
	if !c.typeAccepted(msg.Type) {
		return nil, invalidFormat("not an authorization request: type %q", msg.Type)
	}

	creds := make([]domain.RequestedCredential, 0, len(msg.Body.Scope))
	for _, q := range msg.Body.Scope {
		credType := q.Query.Type
		if credType == "" {
			credType = "ProofOfLife"
		}
		rawQuery, _ := json.Marshal(q.Query)
		creds = append(creds, domain.RequestedCredential{
			Type:           credType,
			RequiredFields: subjectFields(q.Query.CredentialSubject),
			CircuitID:      q.CircuitID,
			Query:          rawQuery,
		})
	}
	if len(creds) == 0 {
		creds = append(creds, domain.RequestedCredential{
			Type:           "ProofOfLife",
			RequiredFields: []string{"identity"},
		})
	}

	requestID := newRequestID("req")
	sessionID := msg.ThreadID
	if sessionID == "" {
		sessionID = msg.ID
	}
	if sessionID == "" {
		sessionID = requestID
	}

	purpose := msg.Body.Reason
	if purpose == "" {
		purpose = determinePurpose(creds)
	}

	return &domain.VerificationRequest{
		ID:                   requestID,
		SessionID:            sessionID,
		CallbackURL:          msg.Body.CallbackURL,
		Requester:            domain.Requester{Name: RequesterName(msg.From), DID: msg.From},
		RequestedCredentials: creds,
		Purpose:              purpose,
		CreatedAt:            time.Now().UTC(),
		Status:               domain.RequestStatusPending,
		OriginalQRData:       json.RawMessage(payload),
	}, nil
}

// Validate reports whether a payload would classify, without building the
// request. Handy as a cheap pre-check in the scan loop.
func (c *Classifier) Validate(payload string) bool {
	_, err := c.Classify(payload)
	return err == nil
}

// DetectProofType infers the proof type a payload is asking for, defaulting
// to ProofOfLife whenever nothing more specific can be read off it.
func (c *Classifier) DetectProofType(payload string) string {
	req, err := c.Classify(payload)
	if err != nil || len(req.RequestedCredentials) == 0 {
		return "ProofOfLife"
	}
	return req.RequestedCredentials[0].Type
}

func (c *Classifier) urlAccepted(payload string) bool {
	if c.StrictTypes {
		return strings.Contains(payload, "iden3-communication.io")
	}
	for _, marker := range urlMarkers {
		if strings.Contains(payload, marker) {
			return true
		}
	}
	return false
}

func (c *Classifier) typeAccepted(msgType string) bool {
	if msgType == "" {
		return false
	}
	if c.StrictTypes {
		return msgType == protocol.AuthorizationRequestType ||
			msgType == protocol.ContractInvokeRequestType
	}
	for _, valid := range validTypes {
		if strings.Contains(msgType, valid) {
			return true
		}
	}
	return false
}

// determinePurpose maps requested credential types onto a human-readable
// purpose string when the request carries no explicit reason.
func determinePurpose(creds []domain.RequestedCredential) string {
	for _, substr := range []struct{ needle, purpose string }{
		{"life", "Proof of Life verification"},
		{"age", "Age verification"},
		{"membership", "Membership verification"},
		{"kyc", "KYC verification"},
	} {
		for _, c := range creds {
			if strings.Contains(strings.ToLower(c.Type), substr.needle) {
				return substr.purpose
			}
		}
	}
	return "Identity verification"
}

// RequesterName derives a display name from a verifier DID or URL
// identifier. Best effort only, for wallet UI consumption.
func RequesterName(did string) string {
	if did == "" {
		return "Unknown Verifier"
	}

	if parts := strings.Split(did, ":"); len(parts) >= 4 {
		id := parts[len(parts)-1]
		if len(id) > 8 {
			id = id[:8]
		}
		return fmt.Sprintf("Verifier (%s...)", id)
	}

	if strings.Contains(did, "http") {
		if u, err := url.Parse(did); err == nil && u.Hostname() != "" {
			return u.Hostname() + " Verifier"
		}
		return "Web Verifier"
	}

	return "Polygon ID Verifier"
}

func subjectFields(subject map[string]any) []string {
	fields := make([]string, 0, len(subject))
	for k := range subject {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}

func newRequestID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
