// Package taxifare is the root of the taxi fare regression tutorial.
//
// The model predicts the fare of a New York taxi trip from its vendor, rate
// code, passenger count, distance and payment type. Training runs a short
// pipeline over a frame of columns:
//
//	Label               copy of FareAmount
//	VendorIdEncoded     one-hot of VendorId
//	RateCodeEncoded     one-hot of RateCode
//	PaymentTypeEncoded  one-hot of PaymentType
//	Features            concatenation of the encoded columns with PassengerCount and TripDistance
//	Score               gradient boosted regression tree output
//
// The fitted model is saved to a versioned binary container, reloaded and
// evaluated with R² and RMS.
//
// # Packages
//
//   - dataset: CSV schema and loader
//   - preprocessing: column copy, one-hot encoding and concatenation
//   - boosting: histogram based gradient boosted trees
//   - pipeline: ordered estimator chains and the fitted model
//   - core/model: stage registry and the model container
//   - metrics, report: regression metrics and console output
//   - taxifare: train, evaluate and single prediction steps
//   - config, cmd/taxifare: settings and the command-line entry point
//
// # Quick Start
//
//	env, err := taxifare.NewEnv(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := taxifare.Run(env)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Metrics.RSquared)
package taxifare
