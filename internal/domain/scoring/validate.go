package scoring

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so errors match what the client sent.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DimensionInput is a submission as received. Nil fields were absent.
type DimensionInput struct {
	Data      *int `json:"data"`
	Info      *int `json:"info"`
	Knowledge *int `json:"knowledge"`
	Insight   *int `json:"insight"`
	Approval  *int `json:"approval"`
	Award     *int `json:"award"`
}

// InputOf wraps complete dimensions as an input.
func InputOf(d model.Dimensions) DimensionInput {
	return DimensionInput{
		Data: &d.Data, Info: &d.Info, Knowledge: &d.Knowledge,
		Insight: &d.Insight, Approval: &d.Approval, Award: &d.Award,
	}
}

// Resolve checks presence and range of every dimension, in display order.
func (in DimensionInput) Resolve() (model.Dimensions, error) {
	fields := []struct {
		name string
		v    *int
	}{
		{model.DimensionData, in.Data},
		{model.DimensionInfo, in.Info},
		{model.DimensionKnowledge, in.Knowledge},
		{model.DimensionInsight, in.Insight},
		{model.DimensionApproval, in.Approval},
		{model.DimensionAward, in.Award},
	}
	for _, f := range fields {
		if f.v == nil {
			return model.Dimensions{}, &InvalidDimensionError{Dimension: f.name, Max: model.MaxFor(f.name), Missing: true}
		}
	}
	d := model.Dimensions{
		Data: *in.Data, Info: *in.Info, Knowledge: *in.Knowledge,
		Insight: *in.Insight, Approval: *in.Approval, Award: *in.Award,
	}
	return d, ValidateDimensions(d)
}

// ValidateDimensions checks every dimension against [1, max]. The first
// failing dimension, in display order, is reported as *InvalidDimensionError.
func ValidateDimensions(d model.Dimensions) error {
	err := validatorInstance().Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	// validator walks fields in declaration order, which is display order.
	first := verrs[0]
	name := first.Field()
	value, _ := d.Value(name)
	return &InvalidDimensionError{Dimension: name, Value: value, Max: model.MaxFor(name)}
}
