// Package detection turns images into lists of labelled bounding boxes.
//
// The package defines the Model interface implemented by every detector
// backend and the Registry that maps variant keys ("vegetation", "soil",
// "shapes", ...) to loaded models. The registry is built once at process
// start, frozen, and passed to the pipeline; nothing in this package keeps
// global model state.
//
// # Backends
//
//   - ShapeModel: heuristic edge/contour detector, no weights required
//   - ONNXModel: YOLOv8 export run through onnxruntime
//   - CVModel: the same export run through OpenCV DNN (gocv build tag)
//   - RemoteModel: HTTP inference service returning JSON predictions
//
// The ocr package adds a Tesseract-backed model that reports words as
// detections.
//
// # Thresholds
//
// Every Detect call carries a confidence threshold and an overlap threshold.
// Models drop detections below the confidence threshold and run greedy
// per-label non-maximum suppression (SuppressOverlaps) with the overlap
// threshold before returning. Registry.Detect validates both thresholds and
// sanitises model output: malformed boxes are dropped and confidences are
// clamped into [0, 1].
//
// # Coordinate System
//
// Boxes use image pixel coordinates with the origin at the top-left corner.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner; a
// well-formed box has X1 < X2 and Y1 < Y2.
//
// # Errors
//
//   - *imaging.DecodeError: nil or empty input image
//   - ErrUnknownModel: variant key not registered
//   - ErrInvalidThreshold: threshold outside [0, 1]
//   - *InferenceError: the model itself failed
package detection
