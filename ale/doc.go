// Package ale computes Accumulated Local Effects (ALE) for black-box predictors.
//
// For every requested feature the explainer
//
//   - splits the observed range into quantile bins (or uses the distinct values
//     directly for low-resolution and categorical features),
//   - moves each instance to the lower and upper edge of its bin and averages the
//     change in prediction per bin (one batched predictor call per bin),
//   - accumulates the per-bin effects into a step curve starting at zero, and
//   - centers the curve so its data-weighted mean is zero.
//
// Unlike partial dependence, ALE only evaluates the model near the observed data,
// so correlated features do not force predictions on unrealistic inputs.
//
// Features are explained concurrently on a bounded worker pool. Any error aborts
// the whole call; an Explanation is either complete or absent.
//
// Basic usage:
//
//	exp, err := ale.NewExplainer(model, ale.Config{FeatureNames: names})
//	if err != nil {
//		return err
//	}
//	result, err := exp.Explain(ctx, X, nil)
//	if err != nil {
//		return err
//	}
//	for _, f := range result.Features() {
//		fmt.Println(f.Name(), f.FeatureValues(), f.ALE(0))
//	}
package ale
