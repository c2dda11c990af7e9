package meteofrance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/i474232898/meteo-station-dashboard/internal/logging"
)

const invalidJWTBody = `{"code":"900901","message":"Invalid Credentials","description":"Invalid JWT token. Make sure you have provided the correct security credentials"}`

// fakePortal serves the token endpoint and lets each test script the API side.
type fakePortal struct {
	tokens     []string
	tokenCalls atomic.Int32
	apiCalls   atomic.Int32
	api        http.HandlerFunc
	t          *testing.T
}

func (f *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.tokenCalls.Add(1))
		if r.Method != http.MethodPost {
			f.t.Errorf("token method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Basic app-id" {
			f.t.Errorf("token Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			f.t.Errorf("token form = %v (%v)", r.PostForm, err)
		}
		tok := f.tokens[len(f.tokens)-1]
		if n <= len(f.tokens) {
			tok = f.tokens[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + tok + `","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		f.api(w, r)
	})
	return mux
}

func newPortal(t *testing.T, api http.HandlerFunc, tokens ...string) (*fakePortal, *Client) {
	t.Helper()
	if len(tokens) == 0 {
		tokens = []string{"tok-1"}
	}
	f := &fakePortal{tokens: tokens, api: api, t: t}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c := NewClient(&http.Client{Timeout: 2 * time.Second}, Options{
		TokenURL:      srv.URL + "/token",
		ObsBaseURL:    srv.URL + "/obs",
		ClimBaseURL:   srv.URL + "/clim",
		ApplicationID: "app-id",
	}, logging.Discard())
	return f, c
}

func writeObservation(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`[{"validity_time":"2024-07-01T10:00:00Z","t":293.15,"u":60,"ff":5,"rr1":0,"vv":20000,"sss":null,"insolh":30,"pres":101300}]`))
}

func rejectInvalidJWT(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(invalidJWTBody))
}

func TestClient_AcquiresTokenOnceAndSendsBearer(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	f, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+signed {
			t.Errorf("Authorization = %q", got)
		}
		writeObservation(w)
	}, signed)

	for i := 0; i < 3; i++ {
		if _, err := c.GetObservation(context.Background(), "75114001", time.Time{}); err != nil {
			t.Fatalf("GetObservation() error = %v", err)
		}
	}
	if got := f.tokenCalls.Load(); got != 1 {
		t.Errorf("token calls = %d, want 1", got)
	}
}

func TestClient_RefreshesOnceOnInvalidJWT(t *testing.T) {
	f, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			rejectInvalidJWT(w)
			return
		}
		writeObservation(w)
	}, "tok-1", "tok-2")

	obs, err := c.GetObservation(context.Background(), "75114001", time.Time{})
	if err != nil {
		t.Fatalf("GetObservation() error = %v", err)
	}
	if obs.T == nil || *obs.T != 293.15 {
		t.Errorf("T = %v", obs.T)
	}
	if got := f.tokenCalls.Load(); got != 2 {
		t.Errorf("token calls = %d, want 2", got)
	}
	if got := f.apiCalls.Load(); got != 2 {
		t.Errorf("api calls = %d, want 2 (original + one replay)", got)
	}
}

func TestClient_SecondRejectionIsSurfaced(t *testing.T) {
	f, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		rejectInvalidJWT(w)
	}, "tok-1", "tok-2", "tok-3")

	_, err := c.GetObservation(context.Background(), "75114001", time.Time{})
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if got := f.apiCalls.Load(); got != 2 {
		t.Errorf("api calls = %d, want 2", got)
	}
	if got := f.tokenCalls.Load(); got != 2 {
		t.Errorf("token calls = %d, want 2", got)
	}
}

func TestClient_OtherUnauthorizedIsNotRefreshed(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json without marker", "application/json", `{"code":"900908","description":"Resource forbidden"}`},
		{"marker in non json body", "text/plain", "Invalid JWT token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.GetObservation(context.Background(), "75114001", time.Time{})
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
				t.Fatalf("error = %v, want *APIError 401", err)
			}
			if f.tokenCalls.Load() != 1 || f.apiCalls.Load() != 1 {
				t.Errorf("token calls = %d, api calls = %d, want 1/1", f.tokenCalls.Load(), f.apiCalls.Load())
			}
		})
	}
}

func TestClient_ConcurrentRequestsShareToken(t *testing.T) {
	f, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		writeObservation(w)
	}, "tok-1", "tok-2")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetObservation(context.Background(), "75114001", time.Time{}); err != nil {
				t.Errorf("GetObservation() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.tokenCalls.Load(); got != 1 {
		t.Errorf("token calls = %d, want 1", got)
	}
}

func TestClient_GetObservation(t *testing.T) {
	var gotDate string
	_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/obs/station/horaire" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("id_station") != "75114001" || q.Get("format") != "json" {
			t.Errorf("query = %v", q)
		}
		gotDate = q.Get("date")
		writeObservation(w)
	})

	paris := time.FixedZone("CEST", 2*3600)
	at := time.Date(2024, 7, 1, 12, 47, 3, 0, paris)
	obs, err := c.GetObservation(context.Background(), "75114001", at)
	if err != nil {
		t.Fatalf("GetObservation() error = %v", err)
	}
	if gotDate != "2024-07-01T10:00:00Z" {
		t.Errorf("date = %q, want UTC hour", gotDate)
	}
	if obs.Sss != nil {
		t.Errorf("Sss = %v, want nil", *obs.Sss)
	}
	if obs.ValidityTime == nil || !obs.ValidityTime.Equal(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("ValidityTime = %v", obs.ValidityTime)
	}
}

func TestClient_GetObservationEmpty(t *testing.T) {
	_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.GetObservation(context.Background(), "75114001", time.Time{})
	if !errors.Is(err, ErrNoObservation) {
		t.Fatalf("error = %v, want ErrNoObservation", err)
	}
}

func TestClient_ArchiveOrder(t *testing.T) {
	var fileCalls atomic.Int32
	_, c := newPortal(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clim/commande-station/horaire":
			q := r.URL.Query()
			if q.Get("id-station") != "75114001" ||
				q.Get("date-deb-periode") != "2023-07-01T10:00:00Z" ||
				q.Get("date-fin-periode") != "2023-07-01T11:00:00Z" {
				t.Errorf("order query = %v", q)
			}
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"elaboreProduitAvecDemandeResponse":{"return":"774422"}}`))
		case "/clim/commande/fichier":
			if r.URL.Query().Get("id-cmde") != "774422" {
				t.Errorf("fichier query = %v", r.URL.Query())
			}
			if fileCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("POSTE;DATE;T\n75114001;2023070110;21,4\n"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	start := time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC)
	id, err := c.OrderArchive(ctx, "75114001", start, start.Add(time.Hour), Hourly)
	if err != nil {
		t.Fatalf("OrderArchive() error = %v", err)
	}
	if id != "774422" {
		t.Errorf("order id = %q", id)
	}

	if _, err := c.FetchOrderResult(ctx, id); !errors.Is(err, ErrOrderPending) {
		t.Fatalf("first fetch error = %v, want ErrOrderPending", err)
	}
	csv, err := c.FetchOrderResult(ctx, id)
	if err != nil {
		t.Fatalf("second fetch error = %v", err)
	}
	if csv != "POSTE;DATE;T\n75114001;2023070110;21,4\n" {
		t.Errorf("csv = %q", csv)
	}
}
