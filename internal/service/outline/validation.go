package outline

import (
	"errors"
	"fmt"

	"tenderplan/internal/config"
	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// isUUID accepts empty values; combine with validation.Required when needed.
var isUUID = validation.By(func(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	default:
		return errors.New("must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return errors.New("must be a valid UUID")
	}
	return nil
})

func validationErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func validateCreateSection(req *CreateSectionRequest) error {
	return validationErr(validation.ValidateStruct(req,
		validation.Field(&req.ID, isUUID),
		validation.Field(&req.ParentID, isUUID),
		validation.Field(&req.Title,
			validation.Required,
			validation.RuneLength(1, config.MaxSectionTitleLength),
		),
	))
}

func validateCreateTask(req *CreateTaskRequest) error {
	return validationErr(validation.ValidateStruct(req,
		validation.Field(&req.ID, isUUID),
		validation.Field(&req.SectionID, validation.Required, isUUID),
		validation.Field(&req.RequirementText,
			validation.Required,
			validation.RuneLength(1, config.MaxRequirementTextLength),
		),
	))
}

func validateSectionPatch(p *models.SectionPatch) error {
	return validationErr(validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.RuneLength(1, config.MaxSectionTitleLength)),
		validation.Field(&p.Content, validation.RuneLength(0, config.MaxSectionContentLength)),
	))
}

func validateTaskPatch(p *models.TaskPatch) error {
	return validationErr(validation.ValidateStruct(p,
		validation.Field(&p.RequirementText, validation.NilOrNotEmpty, validation.RuneLength(1, config.MaxRequirementTextLength)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.RuneLength(1, config.MaxTaskStatusLength)),
		validation.Field(&p.CitationSourceID, isUUID),
		validation.Field(&p.CitationPage, validation.Min(1)),
	))
}

func validateGeneration(req *GenerationRequest) error {
	return validationErr(validation.ValidateStruct(req,
		validation.Field(&req.Kind, validation.Required, validation.By(func(interface{}) error {
			if !req.Kind.Valid() {
				return fmt.Errorf("unknown generation kind %q", req.Kind)
			}
			return nil
		})),
		validation.Field(&req.SectionID, isUUID),
		validation.Field(&req.TaskID, isUUID),
		validation.Field(&req.SourceIDs,
			validation.Length(0, config.MaxSourceIDsPerRequest),
			validation.Each(validation.Required, isUUID),
		),
		validation.Field(&req.UserDescription, validation.RuneLength(0, config.MaxUserDescriptionLength)),
	))
}
