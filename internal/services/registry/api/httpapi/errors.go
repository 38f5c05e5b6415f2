package httpapi

import (
	"log"
	"net/http"

	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// grpcHTTPStatus maps gRPC status codes to HTTP status codes.
func grpcHTTPStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a google.rpc.Status JSON body. Domain errors carry
// ErrorInfo and a LocalizedMessage resolved from Accept-Language; anything
// else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	domainErr, ok := apperrors.As(err)
	if !ok {
		log.Printf("request failed method=%s path=%s request_id=%s err=%v",
			r.Method, r.URL.Path, r.Header.Get(RequestIDHeader), err)
		writeStatus(w, status.New(codes.Internal, "internal error"))
		return
	}
	catalog := i18n.GetCatalog(i18n.ResolveLocale(r.Header.Get("Accept-Language")))
	message := catalog.Format(string(domainErr.Code), domainErr.Metadata)
	writeStatus(w, domainErr.ToGRPCStatus(catalog.Locale(), message))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeStatus(w, status.New(codes.InvalidArgument, message))
}

func writeStatus(w http.ResponseWriter, st *status.Status) {
	body, err := protojson.Marshal(st.Proto())
	if err != nil {
		http.Error(w, st.Message(), grpcHTTPStatus(st.Code()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(grpcHTTPStatus(st.Code()))
	_, _ = w.Write(body)
}
