package mapping

import (
	"github.com/chris/trustline/pkg/api"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/qr"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ToApiRelation converts a domain Relation model to an API Relation model.
func ToApiRelation(rel *models.Relation) *api.Relation {
	history := make([]api.ScoreEntry, len(rel.TrustScoreHistory))
	for i, e := range rel.TrustScoreHistory {
		history[i] = api.ScoreEntry{Score: e.Score, CalculatedAt: e.CalculatedAt}
	}
	return &api.Relation{
		CustomerId:        rel.CustomerID,
		VendorId:          rel.VendorID,
		CustomerPhone:     rel.CustomerPhone,
		CustomerName:      rel.CustomerName,
		VendorName:        rel.VendorName,
		CreditLimit:       rel.CreditLimit,
		UsedCredit:        rel.UsedCredit,
		AvailableCredit:   rel.AvailableCredit,
		TrustScore:        rel.TrustScore,
		TrustScoreHistory: history,
		TransactionCount:  rel.TransactionCount,
		TotalSpent:        rel.TotalSpent,
		TotalRepaid:       rel.TotalRepaid,
		OnTimePayments:    rel.OnTimePayments,
		LatePayments:      rel.LatePayments,
		DefaultCount:      rel.DefaultCount,
		Status:            string(rel.Status),
		AutoApproved:      rel.AutoApproved,
		KycVerified:       rel.KYCVerified,
		CreatedAt:         rel.CreatedAt,
		UpdatedAt:         rel.UpdatedAt,
		LastTransactionAt: rel.LastTransactionAt,
		LastPaymentAt:     rel.LastPaymentAt,
	}
}

// ToApiTransaction converts a domain Transaction model to an API Transaction model.
// Ids that are not UUIDs map to the zero UUID.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	id, err := uuid.Parse(tx.TransactionID)
	if err != nil {
		id = uuid.Nil
	}
	return &api.Transaction{
		TransactionId:    id,
		CustomerId:       tx.CustomerID,
		VendorId:         tx.VendorID,
		Amount:           tx.Amount,
		TransactionType:  tx.TransactionType,
		Description:      tx.Description,
		PaymentStatus:    string(tx.PaymentStatus),
		DueDate:          openapi_types.Date{Time: tx.DueDate},
		PaidDate:         tx.PaidDate,
		PaymentMethod:    tx.PaymentMethod,
		RepaidAmount:     tx.RepaidAmount,
		ScanMethod:       string(tx.ScanMethod),
		LocationVerified: tx.LocationVerified,
		DistanceKm:       tx.DistanceKm,
		CreatedAt:        tx.CreatedAt,
	}
}

// ToApiTransactions converts a slice of domain transactions.
func ToApiTransactions(txs []models.Transaction) []api.Transaction {
	out := make([]api.Transaction, len(txs))
	for i := range txs {
		out[i] = *ToApiTransaction(&txs[i])
	}
	return out
}

// ToApiDashboard converts a ledger Dashboard to its API form.
func ToApiDashboard(d *ledger.Dashboard) *api.Dashboard {
	return &api.Dashboard{
		Relation:     *ToApiRelation(d.Relation),
		Transactions: ToApiTransactions(d.Transactions),
	}
}

// ToApiQRToken converts a domain QRToken model to an API QRToken model.
func ToApiQRToken(qt *models.QRToken) *api.QRToken {
	return &api.QRToken{
		Token:     qt.Token,
		VendorId:  qt.VendorID,
		QrData:    qt.QRData,
		CreatedAt: qt.CreatedAt,
		ExpiresAt: qt.ExpiresAt,
	}
}

// ToApiValidation converts a QR validation result to its API form.
func ToApiValidation(res *qr.ValidationResult) *api.ValidateQRResponse {
	return &api.ValidateQRResponse{
		Valid:            res.Valid,
		Code:             res.Code,
		Reason:           res.Reason,
		Token:            res.Token,
		VendorId:         res.VendorID,
		VendorName:       res.VendorName,
		AvailableCredit:  res.AvailableCredit,
		LocationVerified: res.LocationVerified,
		DistanceKm:       res.DistanceKm,
	}
}

// ToDomainCoordinate converts an optional API coordinate.
func ToDomainCoordinate(c *api.Coordinate) *models.Coordinate {
	if c == nil {
		return nil
	}
	return &models.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

// ToDomainDraw converts an API NewTransaction to a ledger draw.
func ToDomainDraw(newTx *api.NewTransaction) ledger.DrawInput {
	return ledger.DrawInput{
		CustomerID:       newTx.CustomerId,
		VendorID:         newTx.VendorId,
		Amount:           newTx.Amount,
		Description:      newTx.Description,
		QRToken:          newTx.QrToken,
		CustomerLocation: ToDomainCoordinate(newTx.Location),
	}
}

// ToDomainRepayment converts an API NewRepayment for transaction txID.
func ToDomainRepayment(txID string, r *api.NewRepayment) ledger.RepaymentInput {
	return ledger.RepaymentInput{
		TransactionID: txID,
		Amount:        r.Amount,
		OnTime:        r.OnTime,
		PaymentMethod: r.PaymentMethod,
	}
}

// ToDomainRegistration converts an API RegisterRequest. The vendor name is filled in by the ledger.
func ToDomainRegistration(req *api.RegisterRequest) ledger.RegisterInput {
	return ledger.RegisterInput{
		CustomerPhone:  req.Phone,
		CustomerName:   req.CustomerName,
		VendorID:       req.VendorId,
		RequestedLimit: req.RequestedLimit,
	}
}
