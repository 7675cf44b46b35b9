// Package dataset describes the taxi trip CSV layout and loads it into frames.
package dataset

// Frame column names produced by the loader. They double as the names the
// pipeline stages read and write.
const (
	VendorIDColumn       = "VendorId"
	RateCodeColumn       = "RateCode"
	PassengerCountColumn = "PassengerCount"
	TripTimeColumn       = "TripTime"
	TripDistanceColumn   = "TripDistance"
	PaymentTypeColumn    = "PaymentType"
	FareAmountColumn     = "FareAmount"
)

// TripRecord is one row of the taxi trip file. Field order matches the file's
// column order; the loader maps cells onto fields by position.
type TripRecord struct {
	VendorID       string  `csv:"vendor_id"`
	RateCode       string  `csv:"rate_code"`
	PassengerCount float32 `csv:"passenger_count"`
	TripTime       float32 `csv:"trip_time_in_secs"`
	TripDistance   float32 `csv:"trip_distance"`
	PaymentType    string  `csv:"payment_type"`
	FareAmount     float32 `csv:"fare_amount"`
}

// FarePrediction is the model output for one TripRecord. FareAmount here is
// the predicted Score, not the ground truth carried by TripRecord.
type FarePrediction struct {
	FareAmount float32 `csv:"Score"`
}

// CanonicalSample is the documented single-prediction example. Its fare is
// zero because it is the value to be predicted.
func CanonicalSample() TripRecord {
	return TripRecord{
		VendorID:       "VTS",
		RateCode:       "1",
		PassengerCount: 1,
		TripTime:       1140,
		TripDistance:   3.75,
		PaymentType:    "CRD",
		FareAmount:     0,
	}
}

// ReferenceFare is the fare printed next to the canonical sample's prediction
// for manual comparison.
const ReferenceFare = 15.5
