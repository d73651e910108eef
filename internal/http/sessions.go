package httpx

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/analyzer"
	"github.com/shortontech/botsense/internal/event"
	"github.com/shortontech/botsense/internal/fingerprint"
	"github.com/shortontech/botsense/internal/network"
)

type createSessionRequest struct {
	Fingerprint fingerprint.Snapshot    `json:"fingerprint"`
	Connection  *network.ConnectionInfo `json:"connection"`
}

type createSessionResponse struct {
	SessionID       string `json:"sessionId"`
	FingerprintHash string `json:"fingerprintHash"`
}

type peerIPRequest struct {
	LocalIP  string `json:"localIp"`
	PublicIP string `json:"publicIp"`
}

// CreateSession starts an analyzer session from the posted snapshot and
// sets the signed session cookie. A valid cookie from an earlier visit
// names the previous session whose record is loaded.
func (e Env) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !e.decodeJSON(w, r, &req) {
		return
	}

	opts := e.Defaults
	opts.Provider = fingerprint.Submit(req.Fingerprint)
	opts.Store = e.Store
	opts.Logger = e.log()
	opts.NetworkContext = network.Context{
		Connection: req.Connection,
		ReportedIP: network.ClientIP(r, e.Cfg.TrustProxy),
	}
	opts.AutomationHeaders = network.AutomationHeaders(r.Header)
	if e.Signer != nil {
		if prev, ok := e.Signer.FromRequest(r); ok {
			opts.PreviousSessionID = prev
		}
	}

	s, err := analyzer.Create(r.Context(), opts)
	if err != nil {
		e.log().Debug("http: session not created", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	s.ApplyHeaders(network.LowerHeaders(r.Header))

	e.Sessions.Add(s)
	if e.Metrics != nil {
		e.Metrics.SetActiveSessions(e.Sessions.Len())
	}
	if e.Signer != nil {
		http.SetCookie(w, e.Signer.Cookie(s.ID(), e.now(), e.Cfg.SecureCookies))
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       s.ID(),
		FingerprintHash: s.FingerprintHash(),
	})
}

// RecordEvents accepts a single event, an array of events, or
// {"events": [...]}. Invalid events are dropped and counted.
func (e Env) RecordEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := e.lookup(w, r)
	if !ok {
		return
	}

	var raw json.RawMessage
	if !e.decodeJSON(w, r, &raw) {
		return
	}
	events, err := decodeEvents(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid events payload")
		return
	}

	accepted, rejected := 0, 0
	for _, ev := range events {
		if err := s.Record(ev); err != nil {
			rejected++
			if e.Metrics != nil {
				e.Metrics.IncrementInvalidEvents(invalidReason(err))
			}
			continue
		}
		accepted++
		if e.Metrics != nil {
			e.Metrics.IncrementEventsRecorded(string(ev.Kind))
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted, "rejected": rejected})
}

func decodeEvents(raw json.RawMessage) ([]event.Event, error) {
	if len(raw) > 0 && raw[0] == '[' {
		var arr []event.Event
		err := json.Unmarshal(raw, &arr)
		return arr, err
	}
	var batch struct {
		Events []event.Event `json:"events"`
	}
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, err
	}
	if batch.Events != nil {
		return batch.Events, nil
	}
	var ev event.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return []event.Event{ev}, nil
}

func invalidReason(err error) string {
	switch {
	case errors.Is(err, event.ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, event.ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return "other"
	}
}

// PeerIP completes the session's peer address probe.
func (e Env) PeerIP(w http.ResponseWriter, r *http.Request) {
	s, ok := e.lookup(w, r)
	if !ok {
		return
	}

	var req peerIPRequest
	if !e.decodeJSON(w, r, &req) {
		return
	}
	if req.LocalIP == "" && req.PublicIP == "" {
		writeError(w, http.StatusBadRequest, "no address supplied")
		return
	}
	for _, ip := range []string{req.LocalIP, req.PublicIP} {
		if ip != "" && net.ParseIP(ip) == nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
	}

	if !s.DeliverPeerIPs(network.PeerIPs{Local: req.LocalIP, Public: req.PublicIP}) {
		writeError(w, http.StatusConflict, "peer address already delivered")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (e Env) Analysis(w http.ResponseWriter, r *http.Request) {
	s, ok := e.lookup(w, r)
	if !ok {
		return
	}
	res := s.DetailedAnalysis()
	e.emit(res)
	writeJSON(w, http.StatusOK, res)
}

func (e Env) Verdict(w http.ResponseWriter, r *http.Request) {
	s, ok := e.lookup(w, r)
	if !ok {
		return
	}
	res := s.Analyze()
	e.emit(res)
	writeJSON(w, http.StatusOK, res.Verdict())
}

func (e Env) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !e.Sessions.Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if e.Metrics != nil {
		e.Metrics.SetActiveSessions(e.Sessions.Len())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e Env) lookup(w http.ResponseWriter, r *http.Request) (*analyzer.Session, bool) {
	s, ok := e.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

func (e Env) emit(res analyzer.Result) {
	if e.Emit == nil {
		return
	}
	e.Emit(res.Report(uuid.NewString(), e.now()))
}
