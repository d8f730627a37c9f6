package runtime

func (in *Variable) DeepCopy() *Variable {
	if in == nil {
		return nil
	}
	out := *in
	if in.DataType != nil {
		dt := *in.DataType
		out.DataType = &dt
	}
	return &out
}

func (in VariableSlice) DeepCopy() VariableSlice {
	if in == nil {
		return nil
	}
	out := make(VariableSlice, len(in))
	for i, v := range in {
		out[i] = v.DeepCopy()
	}
	return out
}

func (in *S7Address) DeepCopy() *S7Address {
	if in == nil {
		return nil
	}

	out := *in
	out.Option = in.Option.DeepCopy()

	return &out
}

func (in *S7AddressOption) DeepCopy() *S7AddressOption {
	if in == nil {
		return nil
	}

	out := *in

	return &out
}
