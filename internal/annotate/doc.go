// Package annotate burns detections into images.
//
// Two artifacts are produced from a source image and its detections:
//
//   - the annotated image, with a box outline and a "label 0.87" caption for
//     every detection at or above the confidence threshold
//   - the mask overlay, the source with a translucent white fill over every
//     accepted box
//
// Both functions return fresh images with a (0,0) origin and the same size
// as the source. The source is never modified and the output depends only
// on the inputs, so annotating twice yields identical pixels.
//
// Captions are drawn three times: two dark shadows offset diagonally around
// a bright foreground. This keeps labels readable on any background.
package annotate
