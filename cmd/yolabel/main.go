// Command yolabel prepares YOLO-format object detection datasets: it runs a
// pretrained ONNX detector over an image folder to produce label files,
// validates and converts label data between YOLO, KITTI, Sloth, VIA and
// TFRecord formats, and renders annotated preview images.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sensorable/yolabel"
	"github.com/sensorable/yolabel/detect"
)

// The operation modes.
const (
	modeDetect  = "detect"
	modeConvert = "convert"
	modeCheck   = "check"
	modeRender  = "render"
)

var (
	mode string // The operation mode.

	convertFrom format // The source format (convert mode).
	convertTo   format // The target format (convert mode).

	imageDirPath           string   // The input directory with the images.
	imageOutDirPath        string   // The output directory for processed images.
	labelFileOrDirPath     string   // The input label directory or file, depending on the format.
	labelOutFileOrDirPaths []string // The output label dir or file path(s).
	labelOutSplits         []int    // The cumulative split percentages for the output datasets.
	classNamesFilePath     string   // The classes.txt file mapping ids to names.
	classNamesOutFilePath  string   // Where to write the (possibly extended) class names.
	tfRecordLabelMapPath   string   // The TFRecord label map output file.
	numShardFiles          int      // The number of TFRecord shard files to create.

	modelFilePath     string  // The ONNX detection model (detect mode).
	onnxLibPath       string  // The onnxruntime shared library path.
	confThreshold     float64 // The detection confidence threshold.
	iouThreshold      float64 // The NMS IOU threshold.
	modelInputSize    int     // The model input size.
	modelNumClasses   int     // The number of classes in the model head.
	useCuda           bool    // Enable the CUDA execution provider.
	numThreads        int     // The ONNX intra-op thread count.
	abortOnImageError bool    // Abort the detection batch at the first failed image.

	classMappings       string  // A comma-separated string of old=new class id mappings.
	filterClasses       string  // A comma-separated string of class ids to keep (empty keeps all).
	filterConfidence    float64 // The minimum confidence value to keep a record.
	filterRequireRecord bool    // Filter out files with no records (after other filters).
	filterMinWidth      float64 // The minimum normalized record width.
	filterMinHeight     float64 // The minimum normalized record height.

	imageOutEncoding        string // The file type for image outputs.
	imageResizeLonger       int    // The target length for the longer side of the image.
	imageResizeShorter      int    // The target length for the shorter side of the image.
	imageDownsamplingFilter string // The algorithm to use when downsampling.
	imageUpsamplingFilter   string // The algorithm to use when upsampling.
	imageJPEGQuality        int    // The JPEG quality for JPEG outputs.
	imageCropObjects        bool   // Crop individual objects from images and output these instead.

	previewFontPath string // The font used for preview captions (render mode).
)

type format int

// The known label formats.
const (
	Unknown format = iota
	YOLO
	Kitti
	Sloth
	TFRecord
	VIA // VGG Image Annotator
)

func formatFrom(s string) format {
	switch s {
	case "yolo":
		return YOLO
	case "kitti":
		return Kitti
	case "sloth":
		return Sloth
	case "tfrecord":
		return TFRecord
	case "via":
		return VIA
	}
	return Unknown
}

func init() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  detect mode:\t\t-images <dir> -labels-out <dir> -model <file>"+
				" [-conf -iou -onnx-lib -cuda]")
		_, _ = fmt.Fprintln(os.Stderr, "  convert mode:\t\t-from <fmt> -to <fmt> -labels <path>"+
				" -labels-out <path[,...]> [-images <dir>] [-names <file>]")
		_, _ = fmt.Fprintln(os.Stderr, "  check mode:\t\t-labels <dir>")
		_, _ = fmt.Fprintln(os.Stderr, "  render mode:\t\t-images <dir> -labels <dir>"+
				" -images-out <dir> -font <file> [-names <file>]")
		_, _ = fmt.Fprintln(os.Stderr)
		_, _ = fmt.Fprintln(os.Stderr, "  formats: yolo, kitti, sloth, via (input);"+
				" yolo, kitti, sloth, via, tfrecord (output)")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	printUsageAndExit := func(msg ...interface{}) {
		log.Print(msg...)
		flag.Usage()
		os.Exit(1)
	}

	flag.StringVar(&mode, "mode", modeConvert,
		"The operation `mode` {detect, convert, check, render}")

	// Format arguments.
	from := flag.String("from", "", "The source `format` (convert mode)")
	to := flag.String("to", "", "The target `format` (convert mode)")

	// Path arguments.
	flag.StringVar(&imageDirPath, "images", imageDirPath,
		"The `path` to the image input directory")
	flag.StringVar(&imageOutDirPath, "images-out", imageOutDirPath,
		"The `path` to the image output directory (image processing and render mode)")
	flag.StringVar(&labelFileOrDirPath, "labels", labelFileOrDirPath,
		"The `path` to the label input file (sloth, via) or directory (yolo, kitti)")
	outPaths := flag.String("labels-out", "",
		"The comma-separated paths (`path[,...]`) to the label output files (sloth, tfrecord,"+
				" via) or directories (yolo, kitti); must be one path per value in flag -split")
	outSplits := flag.String("split", "100",
		"The comma-separated output split percentages (`percent[,...]`) to divide labels into;"+
				" must add up to 100%")
	flag.StringVar(&classNamesFilePath, "names", classNamesFilePath,
		"The `path` to the classes.txt file mapping class ids to names")
	flag.StringVar(&classNamesOutFilePath, "names-out", classNamesOutFilePath,
		"The `path` to write the class names to after a conversion that assigns new ids")
	flag.StringVar(&tfRecordLabelMapPath, "tfrecord-label-map-file", tfRecordLabelMapPath,
		"The TFRecord label map output `path`")
	flag.IntVar(&numShardFiles, "num-shards", 1,
		"The number of shard files to create (tfrecord only)")

	// Detection arguments.
	flag.StringVar(&modelFilePath, "model", modelFilePath,
		"The `path` to the ONNX detection model (detect mode)")
	flag.StringVar(&onnxLibPath, "onnx-lib", "",
		"The `path` to the onnxruntime shared library (defaults to the platform library under ./lib)")
	flag.Float64Var(&confThreshold, "conf", 0.25,
		"The detection confidence `threshold`; range [0.0, 1.0]")
	flag.Float64Var(&iouThreshold, "iou", 0.5,
		"The NMS IOU `threshold`; range [0.0, 1.0]")
	flag.IntVar(&modelInputSize, "input-size", 640,
		"The model input `size` in pixels")
	flag.IntVar(&modelNumClasses, "model-classes", 80,
		"The `number` of classes in the model head")
	flag.BoolVar(&useCuda, "cuda", false,
		"Enable the CUDA execution provider")
	flag.IntVar(&numThreads, "threads", 0,
		"The ONNX intra-op thread `count` (zero keeps the runtime default)")
	flag.BoolVar(&abortOnImageError, "abort-on-error", false,
		"Abort the detection batch at the first failed image instead of skipping it")

	// Conversion and filter arguments.
	flag.StringVar(&classMappings, "map-classes", classMappings,
		"Comma-separated list of old=new class id replacements")
	flag.StringVar(&filterClasses, "filter-classes", filterClasses,
		"Comma-separated list of class ids to keep (after map-classes; empty string keeps all)")
	flag.Float64Var(&filterConfidence, "min-confidence", filterConfidence,
		"The minimum confidence value to keep a record; range [0.0, 1.0)")
	flag.BoolVar(&filterRequireRecord, "require-record", filterRequireRecord,
		"Require at least one record (after filters) to keep the file")
	flag.Float64Var(&filterMinWidth, "min-box-width", filterMinWidth,
		"The min. required normalized `width` for record boxes")
	flag.Float64Var(&filterMinHeight, "min-box-height", filterMinHeight,
		"The min. required normalized `height` for record boxes")

	// Image processing arguments.
	flag.StringVar(&imageOutEncoding, "image-enc", "jpg",
		"The `encoding` for output images {jpg, png}")
	flag.IntVar(&imageResizeLonger, "resize-longer", imageResizeLonger,
		"The target `length` for the longer side of the image (zero to keep aspect ratio)")
	flag.IntVar(&imageResizeShorter, "resize-shorter", imageResizeShorter,
		"The target `length` for the shorter side of the image (zero to keep aspect ratio)")
	flag.StringVar(&imageDownsamplingFilter, "downsample-filter", "box",
		"The filter to use when downsampling an image {nearest, box, linear, gaussian, lanczos}")
	flag.StringVar(&imageUpsamplingFilter, "upsample-filter", "linear",
		"The filter to use when upsampling an image {nearest, box, linear, gaussian, lanczos}")
	flag.IntVar(&imageJPEGQuality, "jpeg-quality", 90,
		"The quality to use when encoding JPEGs [1, 100]")
	flag.BoolVar(&imageCropObjects, "crop-objects", imageCropObjects,
		"Crop and output objects from images (image processing flags apply to the individual crops)")

	// Render arguments.
	flag.StringVar(&previewFontPath, "font", previewFontPath,
		"The `path` to the TTF/OTF font used for preview captions (render mode)")

	// Parse and validate flags.
	flag.Parse()

	switch mode {
	case modeDetect, modeConvert, modeCheck, modeRender:
	default:
		printUsageAndExit("Unsupported mode: ", mode)
	}

	// Mode specific validation.
	switch mode {
	case modeDetect:
		if imageDirPath == "" || *outPaths == "" || modelFilePath == "" {
			printUsageAndExit("Missing -images, -labels-out or -model argument")
		}
		if confThreshold < 0 || confThreshold > 1 {
			printUsageAndExit("Invalid -conf, must be in [0.0, 1.0]: ", confThreshold)
		}
		if iouThreshold < 0 || iouThreshold > 1 {
			printUsageAndExit("Invalid -iou, must be in [0.0, 1.0]: ", iouThreshold)
		}

	case modeConvert:
		convertFrom = formatFrom(*from)
		convertTo = formatFrom(*to)

		// Validate the conversion direction.
		validInFormat := false
		for _, f := range []format{YOLO, Kitti, Sloth, VIA} {
			if f == convertFrom {
				validInFormat = true
				break
			}
		}
		validOutFormat := false
		for _, f := range []format{YOLO, Kitti, Sloth, TFRecord, VIA} {
			if f == convertTo {
				validOutFormat = true
				break
			}
		}
		if !validInFormat {
			printUsageAndExit("Unsupported input format")
		} else if !validOutFormat {
			printUsageAndExit("Unsupported output format")
		}

		if labelFileOrDirPath == "" ||
				(convertFrom == YOLO && imageDirPath == "") ||
				(convertFrom == Kitti && imageDirPath == "") ||
				(convertFrom == VIA && imageDirPath == "") {
			printUsageAndExit("Missing label or image input path argument")
		}
		if convertTo == TFRecord && tfRecordLabelMapPath == "" {
			printUsageAndExit("Missing -tfrecord-label-map-file argument")
		}

	case modeCheck:
		if labelFileOrDirPath == "" {
			printUsageAndExit("Missing -labels argument")
		}

	case modeRender:
		if imageDirPath == "" || labelFileOrDirPath == "" || imageOutDirPath == "" ||
				previewFontPath == "" {
			printUsageAndExit("Missing -images, -labels, -images-out or -font argument")
		}
	}

	// Validate output split arguments.
	labelOutFileOrDirPaths = strings.Split(*outPaths, ",")
	splits := strings.Split(*outSplits, ",")
	if mode == modeConvert && len(splits) != len(labelOutFileOrDirPaths) {
		printUsageAndExit("The number of output datasets defined by -split and the number of" +
				" paths in -labels-out must match")
	}

	// Parse splits as cumulative int percentages.
	var splitSum int
	for _, v := range splits {
		if i, err := strconv.Atoi(v); err != nil || i < 0 || i > 100 {
			printUsageAndExit("Invalid value in -split: ", v)
		} else {
			splitSum += i
			labelOutSplits = append(labelOutSplits, splitSum)
		}
	}
	if splitSum != 100 {
		printUsageAndExit("The values in -split must add up to 100%")
	}

	// Image processing arguments.
	if (imageResizeLonger > 0 || imageResizeShorter > 0 || imageCropObjects) &&
			imageOutDirPath == "" {
		printUsageAndExit("Missing image output directory path")
	}
	if imageJPEGQuality < 1 || imageJPEGQuality > 100 {
		imageJPEGQuality = 92
		log.Print("Invalid JPEG quality, setting it to ", imageJPEGQuality)
	}

	// Validate filter arguments.
	if filterConfidence < 0 || filterConfidence >= 1 {
		printUsageAndExit("Invalid -min-confidence, must be in [0.0, 1.0): ", filterConfidence)
	}

	// Clean path arguments.
	if imageDirPath != "" {
		imageDirPath = filepath.Clean(imageDirPath)
	}
	if imageOutDirPath != "" {
		imageOutDirPath = filepath.Clean(imageOutDirPath)
	}
	if imageDirPath != "" && imageDirPath == imageOutDirPath {
		printUsageAndExit("The image input and output paths cannot be identical")
	}

	if labelFileOrDirPath != "" {
		labelFileOrDirPath = filepath.Clean(labelFileOrDirPath)
	}
	for i, v := range labelOutFileOrDirPaths {
		labelOutFileOrDirPaths[i] = filepath.Clean(v)
		if labelFileOrDirPath != "" && labelFileOrDirPath == labelOutFileOrDirPaths[i] {
			printUsageAndExit("The label input and output paths cannot be identical")
		}
	}
}

// loadClassNames loads -names when given, or starts with an empty table.
func loadClassNames() *yolabel.ClassNames {
	if classNamesFilePath == "" {
		return yolabel.NewClassNames(nil)
	}
	names, err := yolabel.LoadClassNames(classNamesFilePath)
	if err != nil {
		log.Fatal("Failed to load the class names: ", err)
	}
	return names
}

func main() {
	switch mode {
	case modeDetect:
		runDetect()
	case modeConvert:
		runConvert()
	case modeCheck:
		runCheck()
	case modeRender:
		runRender()
	}
}

// runDetect auto-labels the image directory with the ONNX model.
func runDetect() {
	cfg := detect.DefaultConfig()
	cfg.ModelPath = modelFilePath
	cfg.ConfThreshold = float32(confThreshold)
	cfg.IOUThreshold = float32(iouThreshold)
	cfg.InputSize = modelInputSize
	cfg.NumClasses = modelNumClasses
	cfg.UseCuda = useCuda
	cfg.NumThreads = numThreads
	if onnxLibPath != "" {
		cfg.OnnxRuntimeLibPath = onnxLibPath
	}

	engine, err := detect.NewEngine(cfg)
	if err != nil {
		log.Fatal("Failed to initialise the detector: ", err)
	}
	defer engine.Destroy()

	report, err := yolabel.AutoLabel(engine, imageDirPath, labelOutFileOrDirPaths[0],
		confThreshold, yolabel.AutoLabelOptions{
			AbortOnError: abortOnImageError,
			Progress: func(done, total int) {
				log.Printf("Processed %d/%d images", done, total)
			},
		})
	if err != nil {
		log.Fatal("Auto-labeling failed: ", err)
	}

	log.Printf("Wrote labels for %d of %d images", report.Processed, report.Total)
	for _, s := range report.Skipped {
		log.Print("Skipped ", s)
	}
}

// runConvert parses the input format, applies the transformations and
// filters, and writes the output format(s).
func runConvert() {
	names := loadClassNames()

	// Parse input.
	var data yolabel.Dataset
	var err error
	switch convertFrom {
	case YOLO:
		data, err = yolabel.FromYOLO(labelFileOrDirPath, imageDirPath)
	case Kitti:
		data, err = yolabel.FromKITTI(labelFileOrDirPath, imageDirPath, names)
	case Sloth:
		data, err = yolabel.FromSloth(labelFileOrDirPath, names)
	case VIA:
		data, err = yolabel.FromVIA(labelFileOrDirPath, imageDirPath, names)
	default:
		err = fmt.Errorf("unsupported input format")
	}
	if err != nil {
		log.Fatal("Failed to parse the input: ", err)
	}

	// Map classes.
	if len(classMappings) > 0 {
		if err := data.MapClasses(strings.Split(classMappings, ",")); err != nil {
			log.Fatal("Failed to map classes: ", err)
		}
	}

	// Apply filters.
	var classIDs []int
	if filterClasses != "" {
		for _, v := range strings.Split(filterClasses, ",") {
			id, err := strconv.Atoi(v)
			if err != nil || id < 0 {
				log.Fatal("Invalid value in -filter-classes: ", v)
			}
			classIDs = append(classIDs, id)
		}
	}
	data.Filter(classIDs, filterConfidence, filterMinWidth, filterMinHeight,
		filterRequireRecord)

	// Process images.
	err = data.ProcessImages(imageOutDirPath, imageResizeLonger, imageResizeShorter,
		imageDownsamplingFilter, imageUpsamplingFilter, imageOutEncoding, imageJPEGQuality,
		imageCropObjects)
	if err != nil {
		log.Fatal("Image processing failed: ", err)
	}

	// Split data into output datasets.
	var datasets []yolabel.Dataset
	if len(labelOutSplits) == 1 {
		datasets = []yolabel.Dataset{data}
	} else {
		if datasets, err = data.Split(labelOutSplits); err != nil {
			log.Fatal("Failed to split the dataset: ", err)
		}
	}

	// Write output datasets.
	for i, data := range datasets {
		outPath := labelOutFileOrDirPaths[i]
		switch convertTo {
		case YOLO:
			err = yolabel.WriteYOLO(outPath, data)
		case Kitti:
			err = yolabel.WriteKITTI(outPath, data, names)
		case Sloth:
			err = yolabel.WriteSloth(outPath, yolabel.ToSloth(data, names))
		case TFRecord:
			err = yolabel.WriteTFRecord(outPath, tfRecordLabelMapPath, data, names, numShardFiles)
		case VIA:
			err = yolabel.WriteVIA(outPath, yolabel.ToVIA(data, names))
		default:
			err = fmt.Errorf("unsupported output format")
		}
		if err != nil {
			log.Fatal("Conversion failed: ", err)
		}

		log.Printf("Successfully wrote labels for %d files to %s", len(data), outPath)
	}

	// Persist class names assigned during the conversion.
	if classNamesOutFilePath != "" {
		if err := names.Save(classNamesOutFilePath); err != nil {
			log.Fatal("Failed to write the class names: ", err)
		}
	}

	log.Print("Total number of labelled files: ", len(data))
}

// runCheck parses every YOLO label file in the label directory and reports
// the malformed lines.
func runCheck() {
	labelFiles, err := yolabel.LabelFilesInDir(labelFileOrDirPath)
	if err != nil {
		log.Fatal("Failed to read the label directory: ", err)
	}

	numRecords := 0
	numProblems := 0
	for _, path := range labelFiles {
		records, problems, err := yolabel.ReadLabelFile(path)
		if err != nil {
			log.Print("Failed to read ", path, ": ", err)
			numProblems++
			continue
		}
		numRecords += len(records)
		numProblems += len(problems)
		for _, p := range problems {
			fmt.Println(p)
		}
	}

	log.Printf("Checked %d files: %d valid records, %d problems",
		len(labelFiles), numRecords, numProblems)
	if numProblems > 0 {
		os.Exit(1)
	}
}

// runRender writes annotated preview images.
func runRender() {
	data, err := yolabel.FromYOLO(labelFileOrDirPath, imageDirPath)
	if err != nil {
		log.Fatal("Failed to parse the labels: ", err)
	}

	names := loadClassNames()
	err = yolabel.RenderPreviews(data, names, imageOutDirPath, previewFontPath,
		imageJPEGQuality)
	if err != nil {
		log.Fatal("Rendering failed: ", err)
	}

	log.Printf("Wrote %d preview images to %s", len(data), imageOutDirPath)
}
