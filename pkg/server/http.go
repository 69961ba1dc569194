package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/pushmodel-dev/pushmodel/pkg/observe"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
	"github.com/pushmodel-dev/pushmodel/pkg/rpc"
)

// ServeRPC handles one-shot POST calls. The body is one message; the reply
// is the message's responses, or 204 when it expects none. Subscription
// methods are not available and the session starts empty every time.
func (s *Server) ServeRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	s.metrics.RecordHTTPRequest(len(body))

	d := rpc.NewDispatcher(s.model.Methods(),
		rpc.WithMiddleware(s.config.Middleware...),
		rpc.WithLogger(s.logger))

	replies := make(chan []*protocol.Response, 1)
	var expected int
	s.model.Do(func() {
		s.model.SetSession(observe.NewObject())
		expected = d.Dispatch(r.Context(), body, func(responses []*protocol.Response) {
			replies <- responses
		})
		s.model.ClearSession()
	})

	if expected == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case responses := <-replies:
		data, err := protocol.EncodeResponses(responses)
		if err != nil {
			s.logger.Error("encode responses", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.metrics.RecordResponsesSent(len(responses))
		s.metrics.RecordBytesSent(len(data))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case <-r.Context().Done():
		s.logger.Debug("client went away before reply", "error", r.Context().Err())
	}
}
