package common

// Speed landmarks in mph, for humans reading thresholds elsewhere.

const SpeedOfWalkingMPH = 2.7
const SpeedOfRunningMPH = 7.5

const SpeedOfDrivingMinMPH = 10
const SpeedOfDrivingCityUSMeanMPH = 31
const SpeedOfDrivingHighwayMPH = 56
const SpeedOfDrivingFreewayMPH = 75
const SpeedOfDrivingAutobahnMPH = 150
