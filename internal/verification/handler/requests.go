package handler

import (
	"veripass/internal/verification"
	dErrors "veripass/pkg/domain-errors"
)

// VerifyRequest is the wire format for POST /v1/verifications. Binary fields
// are base64 in JSON.
type VerifyRequest struct {
	SOD        []byte             `json:"sod"`
	DataGroups []DataGroupPayload `json:"data_groups"`
}

// DataGroupPayload carries one data group's number and raw content.
type DataGroupPayload struct {
	Number  int    `json:"number"`
	Content []byte `json:"content"`
}

// Validate applies transport-level checks before the domain sees the request.
func (r VerifyRequest) Validate() error {
	if len(r.SOD) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "sod is required")
	}
	if len(r.DataGroups) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one data group is required")
	}
	for _, group := range r.DataGroups {
		if group.Number < 1 || group.Number > 16 {
			return dErrors.New(dErrors.CodeBadRequest, "data group number must be between 1 and 16")
		}
		if len(group.Content) == 0 {
			return dErrors.New(dErrors.CodeBadRequest, "data group content is required")
		}
	}
	return nil
}

// ToDomain converts the wire request into the service request.
func (r VerifyRequest) ToDomain(metadata verification.RequestMetadata) verification.VerifyRequest {
	groups := make([]verification.DataGroupInput, 0, len(r.DataGroups))
	for _, group := range r.DataGroups {
		groups = append(groups, verification.DataGroupInput{
			Number:  group.Number,
			Content: group.Content,
		})
	}
	return verification.VerifyRequest{
		SOD:        r.SOD,
		DataGroups: groups,
		Metadata:   metadata,
	}
}
