package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mynextid/zk-callbacks/bulletin"
	"github.com/mynextid/zk-callbacks/bulletin/sigstore"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/object"
)

// UserBulletin is the user bulletin the server fronts
type UserBulletin interface {
	bulletin.UserBul
	bulletin.JoinableBulletin
}

// DefaultClockSkew is how far the time of an executed method may be from
// the server clock
const DefaultClockSkew = 5 * time.Minute

// Server handles HTTP requests against a user bulletin and a callback
// bulletin
type Server struct {
	registry *CircuitRegistry
	users    UserBulletin
	calls    bulletin.CallbackBul
	now      func() time.Time
	skew     time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithClock sets the clock executed methods are checked against. Times are
// unix seconds. A nil now keeps time.Now, a zero skew keeps DefaultClockSkew.
func WithClock(now func() time.Time, skew time.Duration) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
		if skew > 0 {
			s.skew = skew
		}
	}
}

// NewServer creates a new HTTP server
func NewServer(registry *CircuitRegistry, users UserBulletin, calls bulletin.CallbackBul, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		users:    users,
		calls:    calls,
		now:      time.Now,
		skew:     DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==== Request/Response Types ====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CircuitInfoResponse represents circuit information
type CircuitInfoResponse struct {
	Name        string `json:"name"`
	Version     uint   `json:"version"`
	Loaded      bool   `json:"loaded"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// CircuitListResponse represents a list of circuits
type CircuitListResponse struct {
	Circuits []CircuitInfoResponse `json:"circuits"`
	Count    int                   `json:"count"`
}

// ==== Handlers ====

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleListCircuits lists the bundled circuits and the fingerprints of the
// loaded ones
func (s *Server) HandleListCircuits(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(CircuitList))
	for name := range CircuitList {
		names = append(names, name)
	}
	slices.Sort(names)

	circuits := make([]CircuitInfoResponse, 0, len(names))
	for _, name := range names {
		circuits = append(circuits, s.circuitInfo(CircuitList[name]))
	}

	respondJSON(w, http.StatusOK, CircuitListResponse{
		Circuits: circuits,
		Count:    len(circuits),
	})
}

// HandleGetCircuit gets information about a specific circuit
func (s *Server) HandleGetCircuit(w http.ResponseWriter, r *http.Request) {
	circuitName := chi.URLParam(r, "circuit")

	info, ok := CircuitList[circuitName]
	if !ok {
		respondError(w, http.StatusNotFound, "circuit_not_found",
			fmt.Sprintf("circuit '%s' not found", circuitName))
		return
	}
	respondJSON(w, http.StatusOK, s.circuitInfo(info))
}

func (s *Server) circuitInfo(info CircuitInfo) CircuitInfoResponse {
	resp := CircuitInfoResponse{Name: info.Name, Version: info.Version}
	if c, err := s.registry.Get(info.Name); err == nil {
		resp.Loaded = true
		resp.Fingerprint = c.Fingerprint
	}
	return resp
}

// HandleMembership returns the membership data of a user commitment
func (s *Server) HandleMembership(w http.ResponseWriter, r *http.Request) {
	com, err := common.ElementFromHex(chi.URLParam(r, "com"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_commitment", err.Error())
		return
	}
	data, ok := s.users.GetMembershipData(com)
	if !ok {
		respondError(w, http.StatusNotFound, "commitment_not_found",
			fmt.Sprintf("commitment %s is not in the bulletin", common.ElementToHex(com)))
		return
	}
	respondJSON(w, http.StatusOK, MembershipResponse{
		Com:     common.ElementToHex(com),
		Pub:     hexList(data.Pub),
		Witness: hexList(data.Witness),
	})
}

// HandleJoin registers a fresh user after checking its statement proof
func (s *Server) HandleJoin(w http.ResponseWriter, r *http.Request) {
	circuit, err := s.registry.Get(CircuitJoin)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "circuit_not_loaded",
			fmt.Sprintf("circuit '%s' is not loaded: %v", CircuitJoin, err))
		return
	}

	var req JoinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	com, err := common.ElementFromHex(req.Com)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_commitment", err.Error())
		return
	}
	proofBytes, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_proof_encoding",
			fmt.Sprintf("failed to decode proof: %v", err))
		return
	}
	proof, err := common.ReadProof(proofBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_proof", err.Error())
		return
	}
	if err := circuit.VerifyStatement(proof, com); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "verification_failed", err.Error())
		return
	}

	if err := s.users.JoinBul(com); err != nil {
		if errors.Is(err, sigstore.ErrAlreadyJoined) {
			respondError(w, http.StatusConflict, "already_joined", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "join_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, InteractionResponse{Com: common.ElementToHex(com)})
}

// HandleInteraction verifies a CBOR encoded executed method and appends its
// new commitment
func (s *Server) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"failed to read request body")
		return
	}
	defer r.Body.Close()

	var req InteractionRequest
	if err := object.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_cbor",
			fmt.Sprintf("failed to parse request: %v", err))
		return
	}
	em, pubArgs, membPub, err := req.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	circuit, err := s.registry.Lookup(req.Key)
	if err != nil {
		respondError(w, http.StatusNotFound, "key_not_found", err.Error())
		return
	}
	if err := s.checkTime(em.CurTime); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "time_out_of_range", err.Error())
		return
	}
	if circuit.Info.Name == CircuitScan {
		if err := ScanConfig.CheckPublic(s.calls, pubArgs, em.CurTime); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "stale_scan_data", err.Error())
			return
		}
	}

	if err := bulletin.VerifyInteractAndAppend(s.users, em, pubArgs, membPub, circuit.VerifyingKey); err != nil {
		status, code := bulletinStatus(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, InteractionResponse{
		Com:       common.ElementToHex(em.NewObject),
		Nullifier: common.ElementToHex(em.OldNullifier),
	})
}

// checkTime bounds the time an executed method claims to be proven at
func (s *Server) checkTime(t common.Time) error {
	now := s.now().Unix()
	skew := int64(s.skew / time.Second)
	if t > math.MaxInt64 || int64(t) < now-skew || int64(t) > now+skew {
		return fmt.Errorf("time %d is more than %s away from %d", t, s.skew, now)
	}
	return nil
}

// HandleGetCallback returns the call posted on a ticket with its membership
// data, or the nonmembership data of an uncalled ticket
func (s *Server) HandleGetCallback(w http.ResponseWriter, r *http.Request) {
	tik, err := parseTicket(chi.URLParam(r, "tikX"), chi.URLParam(r, "tikY"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_ticket", err.Error())
		return
	}

	if encArgs, postTime, called := s.calls.VerifyIn(tik); called {
		data, ok := s.calls.GetMembershipData(tik)
		if !ok {
			respondError(w, http.StatusInternalServerError, "membership_unavailable",
				"called ticket has no membership data")
			return
		}
		respondJSON(w, http.StatusOK, CallbackResponse{
			Called:   true,
			EncArgs:  hexList(encArgs),
			PostTime: postTime,
			Pub:      hexList(data.Pub),
			Witness:  hexList(data.Witness),
		})
		return
	}

	data, ok := s.calls.GetNonMembershipData(tik)
	if !ok {
		respondError(w, http.StatusInternalServerError, "nonmembership_unavailable",
			"uncalled ticket has no nonmembership data")
		return
	}
	respondJSON(w, http.StatusOK, CallbackResponse{
		Pub:     hexList(data.Pub),
		Witness: hexList(data.Witness),
	})
}

// HandlePostCall posts a call signed by a ticket key
func (s *Server) HandlePostCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tik, encArgs, tikSig, err := req.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_call", err.Error())
		return
	}

	if err := bulletin.VerifyCallAndAppend(s.calls, tik, encArgs, tikSig, req.PostTime); err != nil {
		status, code := bulletinStatus(err)
		respondError(w, status, code, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, CallbackResponse{
		Called:   true,
		EncArgs:  req.EncArgs,
		PostTime: req.PostTime,
	})
}

// ==== Helper Functions ====

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json",
			fmt.Sprintf("failed to parse request: %v", err))
		return false
	}
	return true
}

// bulletinStatus maps a bulletin error to a status and an error code
func bulletinStatus(err error) (int, string) {
	switch {
	case errors.Is(err, bulletin.ErrVerify):
		return http.StatusUnprocessableEntity, "verification_failed"
	case errors.Is(err, bulletin.ErrAppend):
		return http.StatusConflict, "append_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	})
}
