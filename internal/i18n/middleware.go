package i18n

import "net/http"

const langCookie = "lang"

// Middleware picks the UI language per request and injects its localizer.
// A ?lang= query parameter wins and is remembered in a cookie; otherwise the
// cookie, then Accept-Language, then defaultLang decide.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prefs := make([]string, 0, 4)
			if q := r.URL.Query().Get("lang"); q != "" {
				prefs = append(prefs, q)
				http.SetCookie(w, &http.Cookie{
					Name:     langCookie,
					Value:    match(q),
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
			}
			if c, err := r.Cookie(langCookie); err == nil {
				prefs = append(prefs, c.Value)
			}
			prefs = append(prefs, r.Header.Get("Accept-Language"), defaultLang)

			lang := match(prefs...)
			ctx := withLanguage(r.Context(), lang, NewLocalizer(lang, defaultLang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
