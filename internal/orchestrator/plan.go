package orchestrator

import (
	"context"

	"github.com/patrickmvla/rift-copilot/internal/llmgateway"
	"github.com/patrickmvla/rift-copilot/internal/prompts"
)

// planResponse is the JSON shape the plan prompt asks the LLM to
// return, per §4.10 step 1.
type planResponse struct {
	Intent      string         `json:"intent"`
	Subqueries  []string       `json:"subqueries"`
	Focus       []string       `json:"focus"`
	Constraints map[string]any `json:"constraints"`
}

// planStage calls the LLM's plan alias and fills st.subqueries. A
// parse failure degrades to the naive single-subquery plan rather
// than failing the run.
func (o *Orchestrator) planStage(ctx context.Context, req Request, st *runState) error {
	pair := prompts.BuildPlanPrompt(req.Question, string(st.depth), req.Constraints)
	temp := 0.0
	respText, err := o.gateway.Generate(ctx, llmgateway.Request{
		ModelAlias:      llmgateway.AliasPlan,
		System:          pair.System,
		Prompt:          pair.User,
		Temperature:     &temp,
		MaxOutputTokens: 512,
	})
	if err != nil {
		return err
	}

	var plan planResponse
	if !llmgateway.ExtractJSONInto(respText, &plan) || len(plan.Subqueries) == 0 {
		st.subqueries = []string{req.Question}
		return nil
	}

	cap := st.depth.subqueryCap()
	if len(plan.Subqueries) > cap {
		plan.Subqueries = plan.Subqueries[:cap]
	}
	st.subqueries = plan.Subqueries
	return nil
}
