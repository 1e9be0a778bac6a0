package storage

import (
	"encoding/json"
	"errors"

	"gepnas/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePopulation(p model.PopulationSnapshot) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.PopulationSnapshot, error) {
	var snapshot model.PopulationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PopulationSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeHallOfFame(h model.HallOfFameRecord) ([]byte, error) {
	return json.Marshal(h)
}

func DecodeHallOfFame(data []byte) (model.HallOfFameRecord, error) {
	var record model.HallOfFameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.HallOfFameRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.HallOfFameRecord{}, err
	}
	return record, nil
}

func EncodeLogbook(entries []model.LogbookEntry) ([]byte, error) {
	return json.Marshal(entries)
}

func DecodeLogbook(data []byte) ([]model.LogbookEntry, error) {
	var entries []model.LogbookEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
