package writer

import (
	"fmt"

	"github.com/jmbenlloch/go-hdf5"
)

type PhaseEventHDF5 struct {
	evt_index   int32
	trig_delta  int64
	phase_delta float64
	phase0      float64
	phase1      float64
	amplitude0  float64
	amplitude1  float64
	period0     float64
	period1     float64
}

type GaussPointHDF5 struct {
	x float64
	y float64
}

type RunParamHDF5 struct {
	param [STRLEN]byte
	value float64
}

const STRLEN = 24

const TABLE_CHUNK = 32768

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", fname, err)
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, fmt.Errorf("error creating group %s: %w", groupName, err)
	}
	return g, nil
}

// createTable creates an extendible one dimensional dataset whose element
// type is taken from datatype, either a struct or a native number.
func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, err
	}
	defer file_space.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, err
	}
	defer plist.Close()

	chunks := []uint{TABLE_CHUNK}
	if err := plist.SetChunk(chunks); err != nil {
		return nil, err
	}
	if compressionLevel > 0 {
		if err := plist.SetDeflate(compressionLevel); err != nil {
			return nil, err
		}
	}

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, fmt.Errorf("error creating datatype for %s: %w", name, err)
	}

	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		return nil, fmt.Errorf("error creating dataset %s: %w", name, err)
	}
	return dset, nil
}

// writeArrayToTable appends data at the end of the dataset.
func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	dimsGot, _, err := dataset.Space().SimpleExtentDims()
	if err != nil {
		return err
	}
	entriesInFile := dimsGot[0]
	if err := dataset.Resize([]uint{entriesInFile + length}); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{entriesInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}
