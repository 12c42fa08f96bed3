package services

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/votepay/backend/internal/models"
)

// ISO 20022 transaction status codes used in status reports
const (
	StatusCodeSettled  = "ACSC"
	StatusCodeRejected = "RJCT"
	StatusCodePending  = "PDNG"
)

// StatusReportService renders transactions as pacs.002 payment status reports
type StatusReportService struct {
	now func() time.Time
}

func NewStatusReportService() *StatusReportService {
	return &StatusReportService{now: time.Now}
}

// StatusCode maps a transaction status to its ISO 20022 code
func StatusCode(status models.TransactionStatus) string {
	switch status {
	case models.StatusSuccess:
		return StatusCodeSettled
	case models.StatusFailed:
		return StatusCodeRejected
	default:
		return StatusCodePending
	}
}

// CreatePacs002 creates a pacs.002 payment status report
func (s *StatusReportService) CreatePacs002(tx *models.Transaction) *pacs_v08.FIToFIPaymentStatusReportV08 {
	msgID := uuid.New().String()
	status := StatusCode(tx.Status)

	instrID := common.Max35Text(tx.ID.String())
	endToEndID := common.Max35Text(tx.Reference)
	txID := common.Max35Text(tx.ID.String())
	if tx.ProviderTxID != "" && len(tx.ProviderTxID) <= 35 {
		txID = common.Max35Text(tx.ProviderTxID)
	}
	txSts := pacs_v08.ExternalPaymentTransactionStatus1Code(status)

	return &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(s.now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &instrID,
				OrgnlEndToEndId: &endToEndID,
				OrgnlTxId:       &txID,
				TxSts:           &txSts,
			},
		},
	}
}

// RenderXML creates the report for tx and converts it to an XML string
func (s *StatusReportService) RenderXML(tx *models.Transaction) (string, error) {
	xmlData, err := xml.MarshalIndent(s.CreatePacs002(tx), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
