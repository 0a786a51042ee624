package containers

func MockVector(typ Type, vals ...any) Vector {
	vec := MakeVector(typ)
	for _, v := range vals {
		vec.Append(v)
	}
	return vec
}

// MockBatch builds a batch row by row. Each row holds one value per column,
// nil for null.
func MockBatch(attrs []string, typs []Type, rows ...[]any) *Batch {
	bat := BuildBatch(attrs, typs)
	for _, row := range rows {
		for i, v := range row {
			bat.Vecs[i].Append(v)
		}
	}
	return bat
}
