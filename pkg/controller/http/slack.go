package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	slack_ctrl "github.com/secmon-lab/bastion/pkg/controller/slack"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/slack-go/slack"
)

func slackInteractionHandler(slackCtrl *slack_ctrl.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := r.FormValue("payload")
		if payload == "" {
			handleError(w, r, goerr.New("payload is required",
				goerr.T(errs.TagInvalidRequest)),
			)
			return
		}

		var interaction slack.InteractionCallback
		if err := json.Unmarshal([]byte(payload), &interaction); err != nil {
			handleError(w, r, goerr.Wrap(err, "failed to unmarshal slack interaction",
				goerr.T(errs.TagInvalidRequest),
			))
			return
		}

		if err := slackCtrl.HandleSlackInteraction(r.Context(), interaction); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
