package options

import (
	"harnss7/pkg/protocol/s7/model"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

const (
	minPDUSize = 240
	maxQos     = 2
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	allErrs := ValidatePLC(&o.PLC, field.NewPath("plc"))
	allErrs = append(allErrs, validateMQTT(o, field.NewPath("mqtt"))...)
	if o.Collector.Cycle.Duration < 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("collector", "cycle"), o.Collector.Cycle.Duration.String(), "must not be negative"))
	}
	if o.Collector.Connections < 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("collector", "connections"), o.Collector.Connections, "must not be negative"))
	}
	allErrs = append(allErrs, validateVariables(o, field.NewPath("variables"))...)
	for _, err := range allErrs {
		errs = append(errs, err)
	}
	return errs
}

func ValidatePLC(o *PLCOptions, path *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if len(o.Host) == 0 {
		allErrs = append(allErrs, field.Required(path.Child("host"), "controller address is required"))
	}
	if _, err := model.Lookup(o.CPU); err != nil {
		allErrs = append(allErrs, field.NotSupported(path.Child("cpu"), o.CPU, model.CPUNames().List()))
	}
	if o.Rack > model.MaxRack {
		allErrs = append(allErrs, field.Invalid(path.Child("rack"), o.Rack, "must be between 0 and 7"))
	}
	if o.Slot > model.MaxSlot {
		allErrs = append(allErrs, field.Invalid(path.Child("slot"), o.Slot, "must be between 0 and 31"))
	}
	if o.PDUSize != 0 && o.PDUSize < minPDUSize {
		allErrs = append(allErrs, field.Invalid(path.Child("pduSize"), o.PDUSize, "must be 0 or at least 240"))
	}
	if o.Timeout.Duration < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("timeout"), o.Timeout.Duration.String(), "must not be negative"))
	}
	if o.DialTimeout.Duration < 0 {
		allErrs = append(allErrs, field.Invalid(path.Child("dialTimeout"), o.DialTimeout.Duration.String(), "must not be negative"))
	}
	return allErrs
}

func validateMQTT(o *Options, path *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if o.MQTT.Qos > maxQos {
		allErrs = append(allErrs, field.Invalid(path.Child("qos"), o.MQTT.Qos, "must be 0, 1 or 2"))
	}
	if len(o.MQTT.Broker) == 0 && len(o.MQTT.Topic) != 0 {
		allErrs = append(allErrs, field.Required(path.Child("broker"), "a topic is configured without a broker"))
	}
	return allErrs
}

func validateVariables(o *Options, path *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if len(o.Variables) == 0 {
		return append(allErrs, field.Required(path, "at least one variable is required"))
	}
	names := sets.NewString()
	for i, v := range o.Variables {
		idxPath := path.Index(i)
		if len(v.Name) == 0 {
			allErrs = append(allErrs, field.Required(idxPath.Child("name"), ""))
		} else if names.Has(v.Name) {
			allErrs = append(allErrs, field.Duplicate(idxPath.Child("name"), v.Name))
		}
		names.Insert(v.Name)
		if _, err := v.Reference(); err != nil {
			allErrs = append(allErrs, field.Invalid(idxPath.Child("address"), v.Address, err.Error()))
		}
	}
	return allErrs
}
