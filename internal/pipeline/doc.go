// Package pipeline runs detection, annotation and mask synthesis for one
// image and compares the results of two images.
//
// A Pipeline is built from a frozen detection.Registry and an
// annotate.Annotator. Run executes the stages in order:
//
//	decode -> detect -> annotate -> mask -> summarise
//
// and stops at the first failure, returning a *StageError that names the
// stage. The mask is built from the detections the annotator accepted, not
// from raw model output, so the summary, the annotated image and the mask
// always describe the same set of boxes.
//
// Compare runs the same pipeline on two images with identical parameters
// and reports the signed differences (second minus first) between their
// summaries. If either run fails the comparison fails with a
// *ComparisonError and no partial result is returned.
//
// Results live in memory. ArtifactWriter persists them as
// <base>_detected.jpg and <base>_mask.png and never reports a path it did
// not finish writing.
package pipeline
