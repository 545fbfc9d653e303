package contacts

import (
	"strings"

	"telephony-relay/pkg/utils"
)

var validate = utils.NewValidator()

// normalize trims in, checks its binding tags and drops blank tags.
func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.TrimSpace(in.Email)
	in.Notes = strings.TrimSpace(in.Notes)
	trimmed := make([]string, len(in.Tags))
	for i, tag := range in.Tags {
		trimmed[i] = strings.TrimSpace(tag)
	}
	in.Tags = trimmed

	if err := validate.Struct(in); err != nil {
		fields, ok := utils.FieldErrors(err)
		if !ok {
			return Input{}, err
		}
		return Input{}, &ValidationError{Fields: fields}
	}

	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	in.Tags = tags
	return in, nil
}
