package handlers

import (
	"github.com/example/insect-id/internal/insect"
	"github.com/example/insect-id/internal/share"
	"github.com/example/insect-id/internal/usecase"
)

const approximateNotice = "The identification service is unavailable right now. This is an approximate match and may be wrong."

type resultView struct {
	Status    usecase.Status               `json:"status"`
	RequestID string                       `json:"requestId"`
	Record    *insect.IdentificationRecord `json:"record,omitempty"`
	Stored    *storedView                  `json:"stored,omitempty"`
	Notice    string                       `json:"notice,omitempty"`
	Message   string                       `json:"message,omitempty"`
	Share     *share.Links                 `json:"share,omitempty"`
}

// storedView omits the image the client just sent.
type storedView struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	IsFavorite bool   `json:"isFavorite"`
}

// render maps an outcome to the JSON the app displays. Approximate results
// always carry a notice so they stay distinguishable from a not-an-insect
// message.
func render(outcome *usecase.Outcome, shareBaseURL string) resultView {
	view := resultView{
		Status:    outcome.Status,
		RequestID: outcome.RequestID,
		Message:   outcome.Message,
	}
	if outcome.Record == nil {
		return view
	}

	view.Record = outcome.Record
	if outcome.Stored != nil {
		view.Stored = &storedView{
			ID:         outcome.Stored.ID,
			Timestamp:  outcome.Stored.Timestamp,
			IsFavorite: outcome.Stored.IsFavorite,
		}
	}
	if outcome.Status == usecase.StatusApproximate {
		view.Notice = approximateNotice
	}
	links := share.Build(*outcome.Record, shareBaseURL)
	view.Share = &links
	return view
}
