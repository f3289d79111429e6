package yolabel

// TFRecord object detection specific functionality.

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	tensorflow "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// TFFeatureMap maps feature names to their values. Values must be
// convertible to tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// toTFRecord converts the records for a single file to a TFRecord feature
// map. TensorFlow label maps are 1-based, so the class id is shifted by one.
func toTFRecord(fileData File, names *ClassNames) (TFFeatureMap, error) {
	// Get the image width and height.
	img, format, err := decodeImageConfig(fileData.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode the image metadata: %v", err)
	}

	// Read the image data.
	imgData, err := os.ReadFile(fileData.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to read the image: %v", err)
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f["image/height"] = img.Height
	f["image/width"] = img.Width
	f["image/filename"] = fileData.Image
	f["image/source_id"] = fileData.Image
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per record data. The stored coordinates are already
	// normalized; only the center/size to min/max conversion remains.
	numRecords := len(fileData.Records)
	xmins := make([]float32, numRecords)
	ymins := make([]float32, numRecords)
	xmaxs := make([]float32, numRecords)
	ymaxs := make([]float32, numRecords)
	classes := make([]string, numRecords)
	classIDs := make([]int64, numRecords)
	for i, r := range fileData.Records {
		xmins[i] = float32(r.XCenter - r.Width/2)
		ymins[i] = float32(r.YCenter - r.Height/2)
		xmaxs[i] = float32(r.XCenter + r.Width/2)
		ymaxs[i] = float32(r.YCenter + r.Height/2)
		classes[i] = names.Name(r.ClassID)
		classIDs[i] = int64(r.ClassID) + 1
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return f, nil
}

// WriteTFRecord does a streaming conversion, serialisation and file write
// for the annotation data to one or more TFRecord files stored under
// recordFilePath (with suffixes added when numShards > 1).
//
// A label map covering the classes referenced by data is written to
// labelMapPath in pbtxt format.
func WriteTFRecord(recordFilePath, labelMapPath string, data Dataset, names *ClassNames,
		numShards int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}
	// A shard needs at least one element, or the suffix count would claim
	// shard files that are never written.
	if numShards > len(data) && len(data) > 0 {
		numShards = len(data)
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	// Extend an existing label map so ids stay stable across runs.
	labelMap, err := loadTFRecordLabelMap(labelMapPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		labelMap = make(map[string]int32)
	}

	var shardFile *os.File
	shardSize := int(math.Ceil(float64(len(data)) / float64(numShards)))
	shardIdx := -1

	// Convert and serialise one data element at a time.
	for i, fileData := range data {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++

			// Close the previous shard file.
			if shardFile != nil {
				_ = shardFile.Close()
				shardFile = nil
			}

			// Create the new shard file.
			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		// Convert the file data to a feature map.
		features, err := toTFRecord(fileData, names)
		if err != nil {
			log.Printf("Failed to convert %q: %v", fileData.Image, err)
			continue
		}
		for _, r := range fileData.Records {
			labelMap[names.Name(r.ClassID)] = int32(r.ClassID) + 1
		}
		tfExample := example.New(features)

		// Write the example.
		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			log.Print("Failed to write example: ", err)
			break
		}
	}

	if shardFile != nil {
		shardFile.Close()
	}

	return saveTFRecordLabelMap(labelMapPath, labelMap)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord
// to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap writes the labelMap to path in the pbtxt format used
// by the TensorFlow object detection API, ordered by id.
func saveTFRecordLabelMap(path string, labelMap map[string]int32) error {
	type item struct {
		name string
		id   int32
	}
	items := make([]item, 0, len(labelMap))
	for k, v := range labelMap {
		items = append(items, item{name: k, id: v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].id < items[j].id })

	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "item {\n  id: %d\n  name: '%s'\n}\n", it.id, it.name)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write the label map %q: %v", path, err)
	}
	return nil
}

// loadTFRecordLabelMap loads a pbtxt label map from path.
//
// If an error occurs because the file does not exist, then os.IsNotExist
// will return true for the error.
func loadTFRecordLabelMap(path string) (map[string]int32, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(enc), "\n")

	labelMap := make(map[string]int32)
	var name string
	var id int32
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "id:"):
			v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "id:")))
			if err != nil {
				return nil, fmt.Errorf("invalid id line %q: %v", line, err)
			}
			id = int32(v)
		case strings.HasPrefix(line, "name:"):
			name = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "name:")), "'\"")
		case line == "}":
			if name == "" || id <= 0 {
				return nil, fmt.Errorf("invalid entry: %s: %d", name, id)
			}
			labelMap[name] = id
			name, id = "", 0
		}
	}

	return labelMap, nil
}
