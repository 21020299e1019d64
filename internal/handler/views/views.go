// Package views renders the dashboard HTML.
//
//go:generate templ generate
package views

import (
	"context"
	"net/url"

	"github.com/a-h/templ"

	"github.com/pavelanni/qchecker/internal/checker"
	appI18n "github.com/pavelanni/qchecker/internal/i18n"
	"github.com/pavelanni/qchecker/internal/model"
)

const styles = `
:root { --bg:#0f172a; --surface:#1e293b; --text:#f1f5f9; --muted:#94a3b8; --primary:#38bdf8;
  --success:#22c55e; --error:#ef4444; --border:#334155; }
* { box-sizing: border-box; }
body { margin:0; font-family: system-ui, sans-serif; background:var(--bg); color:var(--text); }
main { max-width: 80rem; margin: 0 auto; padding: 2rem 1rem; }
header.top { display:flex; flex-wrap:wrap; justify-content:space-between; align-items:center; gap:1rem; margin-bottom:2rem; }
h1 { margin:0; font-size:2rem; }
.muted { color:var(--muted); }
.toolbar { display:flex; gap:.5rem; }
button { background:var(--primary); color:#0f172a; border:0; border-radius:.5rem; padding:.6rem 1.2rem; font-weight:600; cursor:pointer; }
button:disabled { opacity:.5; cursor:not-allowed; }
.banner { border:1px solid var(--error); background:rgba(239,68,68,.1); color:var(--error); border-radius:.75rem; padding:1rem; margin-bottom:1.5rem; text-align:center; }
.progress { margin-bottom:1.5rem; }
.progress progress { width:100%; height:.5rem; accent-color:var(--primary); }
.grid { display:grid; grid-template-columns:repeat(auto-fill, minmax(22rem, 1fr)); gap:1.5rem; }
.card { background:var(--surface); border:2px solid var(--border); border-radius:.75rem; padding:1.5rem; display:flex; flex-direction:column; }
.card.status-checking { border-color:var(--primary); }
.card.status-correct { border-color:var(--success); }
.card.status-wrong, .card.status-error { border-color:var(--error); }
.card-head { display:flex; justify-content:space-between; align-items:flex-start; margin-bottom:1rem; }
.qtype { color:var(--primary); font-weight:700; letter-spacing:.05em; text-transform:uppercase; font-size:.85rem; }
.qdesc { color:var(--muted); font-size:.75rem; margin:0; }
.status { font-weight:600; }
.status-correct .status { color:var(--success); }
.status-wrong .status, .status-error .status { color:var(--error); }
.status-checking .status { color:var(--primary); }
.status-not_checked .status { color:var(--muted); }
.label { color:var(--muted); font-size:.85rem; margin:0 0 .5rem; }
.statement { background:rgba(15,23,42,.5); padding:.75rem; border-radius:.5rem; line-height:1.5; white-space:pre-wrap; }
.options { list-style:none; padding:0; margin:0 0 1rem; }
.options li { display:flex; gap:.5rem; font-size:.9rem; margin-bottom:.25rem; }
.options .opt-label { color:var(--primary); font-weight:600; min-width:1.25rem; }
.hint { color:var(--error); font-size:.85rem; background:rgba(239,68,68,.1); border-radius:.5rem; padding:.75rem; }
.card form { margin-top:auto; padding-top:1rem; border-top:1px solid var(--border); }
.card form button { width:100%; }
.empty { text-align:center; background:var(--surface); border-radius:.75rem; padding:2rem; }
`

// liveReload reloads the page on any checker event. Reloads are debounced so
// a burst of events during a batch causes one reload.
const liveReload = `
(function () {
  var base = document.body.dataset.base || "";
  if (!window.EventSource) return;
  var timer = null;
  var es = new EventSource(base + "/events");
  var reload = function () {
    if (timer) return;
    timer = setTimeout(function () { window.location.reload(); }, 250);
  };
  ["loaded", "load_failed", "checking", "checked", "failed", "progress", "batch_done"].forEach(function (t) {
    es.addEventListener(t, reload);
  });
})();
`

func stylesheet() templ.Component {
	return templ.Raw("<style>" + styles + "</style>")
}

func liveReloadScript() templ.Component {
	return templ.Raw("<script>" + liveReload + "</script>")
}

// path prefixes p with the request's base path.
func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func checkPath(ctx context.Context, id string) string {
	return path(ctx, "/questions/"+url.PathEscape(id)+"/check")
}

// TypeDescription returns the long name of a question type, or the raw type
// for unknown values.
func TypeDescription(ctx context.Context, t model.QuestionType) string {
	if !t.Known() {
		return string(t)
	}
	return appI18n.T(ctx, "Type"+string(t))
}

// StatusLabel returns the display text for a status.
func StatusLabel(ctx context.Context, s model.Status) string {
	switch s {
	case model.StatusChecking:
		return appI18n.T(ctx, "StatusChecking")
	case model.StatusCorrect:
		return appI18n.T(ctx, "StatusCorrect")
	case model.StatusWrong:
		return appI18n.T(ctx, "StatusWrong")
	case model.StatusError:
		return appI18n.T(ctx, "StatusError")
	default:
		return appI18n.T(ctx, "StatusNotChecked")
	}
}

func summary(ctx context.Context, st checker.State) string {
	return appI18n.Tp(ctx, "QuestionsCount", len(st.Items)) + " · " +
		appI18n.Td(ctx, "Summary", map[string]any{
			"Correct":    st.Counts.Correct,
			"Wrong":      st.Counts.Wrong,
			"Errors":     st.Counts.Error,
			"NotChecked": st.Counts.NotChecked,
		})
}
