package configdef

func HasDup(values []string) bool {
	return hasDup(values)
}
