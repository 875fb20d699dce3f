package web

import (
	"context"
	"embed"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/railsched/internal/auth"
	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/jobs"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth *auth.Store
	Jobs *jobs.Repo

	BaseURL string
}

type tmplData struct {
	Title string
	User  int64

	Flash    string
	Jobs     []jobs.Job
	Job      jobs.Job
	HasCreds bool
	Mobile   string
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/jobs/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleJobNew)))
	mux.Handle("/jobs/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleJobCreate)))
	mux.Handle("/credentials", s.Auth.RequireAuth(http.HandlerFunc(s.handleCredentials)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	js, err := s.Jobs.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hasCreds, err := s.Auth.HasRailCredentials(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/jobs.html", tmplData{
		Title:    "Bookings",
		User:     uid,
		Jobs:     js,
		HasCreds: hasCreds,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/credentials.html", tmplData{Title: "Rail Account", User: uid})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mobile := strings.TrimSpace(r.FormValue("mobile"))
		password := r.FormValue("password")
		if mobile == "" || password == "" {
			s.render(w, "templates/credentials.html", tmplData{Title: "Rail Account", User: uid, Flash: "Mobile and password are required"})
			return
		}
		if err := s.Auth.SaveRailCredentials(r.Context(), uid, mobile, password); err != nil {
			log.Printf("rail: save credentials err: %v", err)
			s.render(w, "templates/credentials.html", tmplData{Title: "Rail Account", User: uid, Flash: "Failed to save credentials"})
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleJobNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/new_job.html", tmplData{
		Title: "New Booking",
		User:  uid,
		Job: jobs.Job{
			TravelClass: "S_CHAIR",
			SeatCount:   1,
			IntervalSec: 60,
		},
	})
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	seatCount, _ := strconv.Atoi(r.FormValue("seat_count"))
	intervalSec, _ := strconv.Atoi(r.FormValue("interval_seconds"))

	// The form takes the browser-native date input and converts it to the
	// textual format the booking site expects.
	travelDate := strings.TrimSpace(r.FormValue("travel_date"))
	if d, err := time.Parse("2006-01-02", travelDate); err == nil {
		travelDate = d.Format(booking.DateLayout)
	}

	// Attempt window: start at purchase-open time, keep retrying for
	// window_minutes after it.
	windowStart, err := time.Parse("2006-01-02T15:04", r.FormValue("window_start"))
	if err != nil {
		s.render(w, "templates/new_job.html", tmplData{Title: "New Booking", User: uid, Flash: "Invalid window start"})
		return
	}
	windowMin, _ := strconv.Atoi(r.FormValue("window_minutes"))
	if windowMin < 1 {
		windowMin = 30
	}

	j := jobs.Job{
		UserID:         uid,
		Name:           strings.TrimSpace(r.FormValue("name")),
		Origin:         strings.TrimSpace(r.FormValue("origin")),
		Destination:    strings.TrimSpace(r.FormValue("destination")),
		TravelDate:     travelDate,
		TravelClass:    strings.TrimSpace(r.FormValue("travel_class")),
		TrainName:      strings.TrimSpace(r.FormValue("train_name")),
		PreferredSeats: booking.SplitSeats(r.FormValue("preferred_seats")),
		SeatCount:      seatCount,
		WindowStartAt:  windowStart.UTC(),
		WindowEndAt:    windowStart.Add(time.Duration(windowMin) * time.Minute).UTC(),
		IntervalSec:    intervalSec,
	}

	if err := j.Validate(); err != nil {
		s.render(w, "templates/new_job.html", tmplData{Title: "New Booking", User: uid, Flash: err.Error(), Job: j})
		return
	}

	if _, err := s.Jobs.Create(r.Context(), j); err != nil {
		log.Printf("rail: create job err: %v", err)
		s.render(w, "templates/new_job.html", tmplData{Title: "New Booking", User: uid, Flash: "Failed to create booking job", Job: j})
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("rail: web listening on %s", addr)
	return srv.ListenAndServe()
}
