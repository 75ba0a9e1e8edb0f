package model

// AnnotationClass is the small fixed taxonomy describing the visibility
// condition of an annotated diatom. Values outside 0-4 render as "Unknown".
type AnnotationClass int

const (
	ClassIncomplete AnnotationClass = iota
	ClassComplete
	ClassFragmented
	ClassBlurred
	ClassSideView
)

var classNames = map[AnnotationClass]string{
	ClassIncomplete: "Incomplete Diatom",
	ClassComplete:   "Complete Diatom",
	ClassFragmented: "Fragmented Diatom",
	ClassBlurred:    "Blurred Diatom",
	ClassSideView:   "Diatom SideView",
}

func (c AnnotationClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "Unknown"
}
