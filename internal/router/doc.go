// Package router scores every registered provider against a prompt
// classification and invokes the winner.
//
// # Scoring
//
//	score(P, C) = 0.6*category_match + 0.2*keyword_overlap + 0.2*quality
//
// category_match is 1 when the classified category is one of the provider's
// strengths. keyword_overlap is the share of the classification keywords that
// appear in the vocabularies of the provider's strength categories (0 when
// there are no keywords). Ties at the top score go to the higher quality, then
// to registration order.
//
// # Usage
//
//	r := router.New(registry, router.Options{})
//	desc, outcome, class, err := r.Route(ctx, prompt)
//	if err != nil {
//	    // empty registry
//	}
//	if !outcome.Success {
//	    // the chosen provider failed; nothing else was tried
//	}
//
// The Router holds no mutable state and is safe for concurrent use.
package router
