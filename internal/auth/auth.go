package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/railsched/internal/crypto"
	"github.com/example/railsched/internal/db"
	"github.com/example/railsched/internal/rail"
)

type Store struct {
	sc   *securecookie.SecureCookie
	db   *db.DB
	aead *crypto.AEAD
}

type ctxKey string

const userIDKey ctxKey = "userID"

const sessionTTL = 14 * 24 * time.Hour

func NewStore(d *db.DB, hashKey, blockKey []byte, aead *crypto.AEAD) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, db: d, aead: aead}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx, `INSERT INTO users(username, password_bcrypt) VALUES ($1,$2)`, username, hash)
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (int64, error) {
	var id int64
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, password_bcrypt FROM users WHERE username=$1`, username).Scan(&id, &hash)
	if err != nil {
		return 0, db.WrapNotFound(err)
	}
	if !CheckPassword(hash, password) {
		return 0, errors.New("invalid credentials")
	}
	return id, nil
}

// SaveRailCredentials stores a user's e-ticket account. The rail password
// is sealed with the AEAD before it is written.
func (s *Store) SaveRailCredentials(ctx context.Context, userID int64, mobile, password string) error {
	enc, err := s.aead.EncryptToString(password)
	if err != nil {
		return err
	}
	return s.db.Exec(ctx, `
INSERT INTO rail_credentials(user_id, mobile, password_enc)
VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO UPDATE SET mobile=EXCLUDED.mobile, password_enc=EXCLUDED.password_enc, updated_at=now()`,
		userID, mobile, enc)
}

func (s *Store) RailCredentials(ctx context.Context, userID int64) (rail.Credentials, error) {
	var mobile, enc string
	err := s.db.QueryRow(ctx, `SELECT mobile, password_enc FROM rail_credentials WHERE user_id=$1`, userID).Scan(&mobile, &enc)
	if err != nil {
		return rail.Credentials{}, db.WrapNotFound(err)
	}
	password, err := s.aead.DecryptString(enc)
	if err != nil {
		return rail.Credentials{}, err
	}
	return rail.Credentials{Mobile: mobile, Password: password}, nil
}

func (s *Store) HasRailCredentials(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rail_credentials WHERE user_id=$1)`, userID).Scan(&exists)
	return exists, err
}

type Session struct {
	UserID int64
}

const cookieName = "railsched_session"

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	val := map[string]any{"uid": userID, "v": 1}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	switch uid := val["uid"].(type) {
	case int64:
		if uid > 0 {
			return Session{UserID: uid}, true
		}
	case float64:
		if uid > 0 {
			return Session{UserID: int64(uid)}, true
		}
	}
	return Session{}, false
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok
}
