package util

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/guregu/null.v3"

	"github.com/riftstats/backend-next/internal/constant"
	"github.com/riftstats/backend-next/internal/model"
)

func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("caseinsensitiveoneof", caseInsensitiveOneOf)
	validate.RegisterValidation("gamerole", gameRole)
	validate.RegisterValidation("strategy", strategy)
	validate.RegisterValidation("metricname", metricName)
	validate.RegisterCustomTypeFunc(nullIntValuer, null.Int{})
	validate.RegisterCustomTypeFunc(nullStringValuer, null.String{})

	return validate
}

func caseInsensitiveOneOf(fl validator.FieldLevel) bool {
	val := strings.ToLower(fl.Field().String())
	candidates := strings.Split(strings.ToLower(fl.Param()), " ")
	for _, v := range candidates {
		if val == v {
			return true
		}
	}
	return false
}

func gameRole(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	return val == "" || constant.ValidRole(val)
}

func strategy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", constant.StrategyBalanced, constant.StrategyConservative, constant.StrategyHighVariance, constant.StrategyCounter:
		return true
	}
	return false
}

func metricName(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, name := range model.MetricNames {
		if val == name {
			return true
		}
	}
	return false
}

func nullIntValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.Int); ok {
		return valuer.Int64
	}

	return nil
}

func nullStringValuer(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(null.String); ok {
		return valuer.String
	}

	return nil
}
